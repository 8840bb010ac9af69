package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BlocksProcessed counts blocks covered by committed ingestion batches
	BlocksProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crowdfund_blocks_processed_total",
			Help: "Total number of blocks processed per chain",
		},
		[]string{"chain"},
	)

	// EventsIngested counts events written per chain and kind
	EventsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crowdfund_events_ingested_total",
			Help: "Total number of contract events ingested",
		},
		[]string{"chain", "event_kind"},
	)

	// LastIndexedBlock tracks the committed progress per chain
	LastIndexedBlock = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "crowdfund_last_indexed_block",
			Help: "Last fully indexed block number per chain",
		},
		[]string{"chain"},
	)

	// JumpAheads counts scheduler jump-ahead decisions
	JumpAheads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crowdfund_jump_aheads_total",
			Help: "Total number of scheduler jump-ahead decisions",
		},
		[]string{"chain"},
	)

	// SweepsTotal counts sweep records by terminal status
	SweepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crowdfund_sweeps_total",
			Help: "Total number of donation sweeps by outcome",
		},
		[]string{"chain", "status"},
	)

	// SweepsOpen tracks pending plus processing sweep records
	SweepsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "crowdfund_sweeps_open",
			Help: "Number of sweep records not yet in a terminal state",
		},
	)

	// SweepsStalled tracks processing records that exhausted the
	// replacement cap and wait for manual intervention
	SweepsStalled = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "crowdfund_sweeps_stalled",
			Help: "Number of sweeps past the replacement cap still unresolved",
		},
	)

	// Replacements counts same-nonce fee-bump replacements
	Replacements = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crowdfund_tx_replacements_total",
			Help: "Total number of stuck-transaction replacements submitted",
		},
		[]string{"chain"},
	)

	// ErrorsTotal counts contained per-cycle errors
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crowdfund_errors_total",
			Help: "Total number of errors by component",
		},
		[]string{"component", "error_type"},
	)
)
