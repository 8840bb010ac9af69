package chain

import (
	"math/big"
)

// EventKind is a named category of contract log
type EventKind string

const (
	EventCampaignCreated   EventKind = "CampaignCreated"
	EventCampaignEdited    EventKind = "CampaignEdited"
	EventCampaignEnded     EventKind = "CampaignEnded"
	EventDonationReceived  EventKind = "DonationReceived"
	EventWithdrawRequested EventKind = "WithdrawRequested"
	EventWithdrawProcessed EventKind = "WithdrawProcessed"
)

// MainChainEventKinds are the kinds only the main chain emits, plus donations
var MainChainEventKinds = []EventKind{
	EventCampaignCreated,
	EventCampaignEdited,
	EventCampaignEnded,
	EventDonationReceived,
	EventWithdrawRequested,
	EventWithdrawProcessed,
}

// SideChainEventKinds are the kinds every non-main chain emits
var SideChainEventKinds = []EventKind{
	EventDonationReceived,
}

// Event is one decoded contract log
type Event struct {
	Kind        EventKind
	BlockNumber uint64
	TxHash      string
	LogIndex    uint

	CampaignID int64
	Campaign   *CampaignPayload
	Donation   *DonationPayload
	Withdrawal *WithdrawalPayload
}

// CampaignPayload carries campaign-created/edited attributes
type CampaignPayload struct {
	Owner       string
	Name        string
	Description string
	Target      *big.Int
	SocialLink  string
	Image       string
}

// DonationPayload carries donation attributes
type DonationPayload struct {
	Donor  string
	Amount *big.Int
}

// WithdrawalPayload carries withdrawal-request attributes
type WithdrawalPayload struct {
	RequestID   int64
	Requester   string
	Amount      *big.Int
	Token       string
	TargetChain string
}

// FeeEstimate is the network fee quote for one contract call
type FeeEstimate struct {
	GasLimit uint64
	BaseFee  *big.Int
	Tip      *big.Int
}

// ReceiptInfo is the outcome of an included transaction
type ReceiptInfo struct {
	Success     bool
	BlockNumber uint64
}

// TxInfo is the fee and nonce shape of a broadcast transaction
type TxInfo struct {
	Nonce   uint64
	Tip     *big.Int
	FeeCap  *big.Int
	Pending bool
}
