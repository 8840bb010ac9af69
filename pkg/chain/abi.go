package chain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// crowdfundABI covers the platform contract surface the middleware touches:
// the six event kinds and the payable donate call the relay submits.
const crowdfundABI = `[
  {"type":"event","name":"CampaignCreated","inputs":[
    {"name":"id","type":"uint256","indexed":true},
    {"name":"owner","type":"address","indexed":true},
    {"name":"name","type":"string","indexed":false},
    {"name":"description","type":"string","indexed":false},
    {"name":"target","type":"uint256","indexed":false},
    {"name":"socialLink","type":"string","indexed":false},
    {"name":"image","type":"string","indexed":false}]},
  {"type":"event","name":"CampaignEdited","inputs":[
    {"name":"id","type":"uint256","indexed":true},
    {"name":"name","type":"string","indexed":false},
    {"name":"description","type":"string","indexed":false},
    {"name":"target","type":"uint256","indexed":false},
    {"name":"socialLink","type":"string","indexed":false},
    {"name":"image","type":"string","indexed":false}]},
  {"type":"event","name":"CampaignEnded","inputs":[
    {"name":"id","type":"uint256","indexed":true}]},
  {"type":"event","name":"DonationReceived","inputs":[
    {"name":"campaignId","type":"uint256","indexed":true},
    {"name":"donor","type":"address","indexed":true},
    {"name":"amount","type":"uint256","indexed":false}]},
  {"type":"event","name":"WithdrawRequested","inputs":[
    {"name":"requestId","type":"uint256","indexed":true},
    {"name":"requester","type":"address","indexed":true},
    {"name":"amount","type":"uint256","indexed":false},
    {"name":"token","type":"address","indexed":false},
    {"name":"targetChain","type":"string","indexed":false}]},
  {"type":"event","name":"WithdrawProcessed","inputs":[
    {"name":"requestId","type":"uint256","indexed":true}]},
  {"type":"function","name":"donate","stateMutability":"payable","inputs":[
    {"name":"id","type":"uint256"}],"outputs":[]}
]`

func parseContractABI() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(crowdfundABI))
}

// decodeEvent maps a raw log to a typed Event. The log is assumed to match
// the topic of the given kind.
func decodeEvent(contractABI abi.ABI, kind EventKind, log types.Log) (Event, error) {
	event := Event{
		Kind:        kind,
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash.Hex(),
		LogIndex:    log.Index,
	}

	def, ok := contractABI.Events[string(kind)]
	if !ok {
		return Event{}, fmt.Errorf("unknown event kind %s", kind)
	}
	if len(log.Topics) < 1+countIndexed(def) {
		return Event{}, fmt.Errorf("event %s: expected %d topics, got %d", kind, 1+countIndexed(def), len(log.Topics))
	}

	vals, err := def.Inputs.NonIndexed().Unpack(log.Data)
	if err != nil {
		return Event{}, fmt.Errorf("unpack %s data: %w", kind, err)
	}

	switch kind {
	case EventCampaignCreated:
		event.CampaignID = topicToInt64(log.Topics[1])
		event.Campaign = &CampaignPayload{
			Owner:       topicToAddress(log.Topics[2]),
			Name:        vals[0].(string),
			Description: vals[1].(string),
			Target:      vals[2].(*big.Int),
			SocialLink:  vals[3].(string),
			Image:       vals[4].(string),
		}
	case EventCampaignEdited:
		event.CampaignID = topicToInt64(log.Topics[1])
		event.Campaign = &CampaignPayload{
			Name:        vals[0].(string),
			Description: vals[1].(string),
			Target:      vals[2].(*big.Int),
			SocialLink:  vals[3].(string),
			Image:       vals[4].(string),
		}
	case EventCampaignEnded:
		event.CampaignID = topicToInt64(log.Topics[1])
	case EventDonationReceived:
		event.CampaignID = topicToInt64(log.Topics[1])
		event.Donation = &DonationPayload{
			Donor:  topicToAddress(log.Topics[2]),
			Amount: vals[0].(*big.Int),
		}
	case EventWithdrawRequested:
		event.Withdrawal = &WithdrawalPayload{
			RequestID:   topicToInt64(log.Topics[1]),
			Requester:   topicToAddress(log.Topics[2]),
			Amount:      vals[0].(*big.Int),
			Token:       vals[1].(common.Address).Hex(),
			TargetChain: vals[2].(string),
		}
	case EventWithdrawProcessed:
		event.Withdrawal = &WithdrawalPayload{
			RequestID: topicToInt64(log.Topics[1]),
		}
	default:
		return Event{}, fmt.Errorf("unhandled event kind %s", kind)
	}

	return event, nil
}

func countIndexed(def abi.Event) int {
	n := 0
	for _, input := range def.Inputs {
		if input.Indexed {
			n++
		}
	}
	return n
}

func topicToInt64(topic common.Hash) int64 {
	return new(big.Int).SetBytes(topic.Bytes()).Int64()
}

func topicToAddress(topic common.Hash) string {
	return common.BytesToAddress(topic.Bytes()).Hex()
}
