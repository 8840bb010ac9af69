package db

// SweepStatus represents the state of a direct donation sweep record
type SweepStatus string

const (
	SweepStatusPending    SweepStatus = "pending"
	SweepStatusProcessing SweepStatus = "processing"
	SweepStatusCompleted  SweepStatus = "completed"
	SweepStatusFailed     SweepStatus = "failed"
)

// Terminal reports whether the status is a final state
func (s SweepStatus) Terminal() bool {
	return s == SweepStatusCompleted || s == SweepStatusFailed
}

// WithdrawalStatus represents the state of a withdrawal request
type WithdrawalStatus string

const (
	WithdrawalStatusRequested WithdrawalStatus = "requested"
	WithdrawalStatusProcessed WithdrawalStatus = "processed"
)

// Audit actions recorded in transaction_audits
const (
	AuditActionCampaignCreated    = "campaign_created"
	AuditActionCampaignEdited     = "campaign_edited"
	AuditActionCampaignEnded      = "campaign_ended"
	AuditActionDonation           = "donation"
	AuditActionWithdrawRequested  = "withdraw_requested"
	AuditActionWithdrawProcessed  = "withdraw_processed"
)
