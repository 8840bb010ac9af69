package indexer

import "context"

// ChainSyncStatus describes how far one chain's ingestion lags its head
type ChainSyncStatus struct {
	Chain            string  `json:"chain"`
	CurrentHeight    uint64  `json:"current_height"`
	LastIndexedBlock int64   `json:"last_indexed_block"`
	BlocksRemaining  uint64  `json:"blocks_remaining"`
	SyncPercentage   float64 `json:"sync_percentage"`
	IsRealtime       bool    `json:"is_realtime"`
	Error            string  `json:"error,omitempty"`
}

// SyncStatus reports ingestion progress per chain. A chain whose RPC or
// progress lookup fails is reported with its Error field set rather than
// failing the whole call.
func (ix *Indexer) SyncStatus(ctx context.Context) []ChainSyncStatus {
	statuses := make([]ChainSyncStatus, 0, len(ix.adapters))
	for _, adapter := range ix.adapters {
		status := ChainSyncStatus{Chain: adapter.Name()}

		currentHeight, err := adapter.CurrentHeight(ctx)
		if err != nil {
			status.Error = err.Error()
			statuses = append(statuses, status)
			continue
		}
		status.CurrentHeight = currentHeight

		progress, err := ix.progress.GetProgress(ctx, adapter.Name())
		if err != nil {
			status.Error = err.Error()
			statuses = append(statuses, status)
			continue
		}
		if progress != nil {
			status.LastIndexedBlock = progress.LastIndexedBlock
		}

		last := uint64(status.LastIndexedBlock)
		if currentHeight > last {
			status.BlocksRemaining = currentHeight - last
		}
		if currentHeight > 0 {
			status.SyncPercentage = float64(last) / float64(currentHeight) * 100
			if status.SyncPercentage > 100 {
				status.SyncPercentage = 100
			}
		}
		status.IsRealtime = status.BlocksRemaining <= ix.cfg.RealtimeThreshold

		statuses = append(statuses, status)
	}
	return statuses
}
