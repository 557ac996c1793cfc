package models

import (
	"encoding/json"
	"fmt"
)

// FlowVersion is the current session payload envelope version.
const FlowVersion = 1

// Plan is a purchasable data bundle as returned by the reseller.
type Plan struct {
	Name        string  `json:"serviceBundleName"`
	Price       float64 `json:"serviceBundlePrice"`
	Description string  `json:"serviceBundleDescription"`
	Token       string  `json:"serviceBundleToken"`
}

// SavedNumberRef is the part of a saved number kept inside a session.
type SavedNumberRef struct {
	SubscriptionID string `json:"subscription_id"`
	SubscriberName string `json:"subscriber_name"`
}

// FlowData is implemented by every per-state session payload.
type FlowData interface {
	flowData()
}

// Empty is the payload of the idle and entering_amount states.
type Empty struct{}

// BundleSelection is held while the user picks from the catalog.
type BundleSelection struct {
	Plans []Plan `json:"plans"`
}

// NumberEntry is held while waiting for a recipient number.
// Plan is set for bundle purchases, Amount for airtime.
type NumberEntry struct {
	Plan   *Plan `json:"selected_plan,omitempty"`
	Amount int64 `json:"amount,omitempty"`
}

// SavedNumberChoice is held while the user picks a saved recipient.
type SavedNumberChoice struct {
	Plan         *Plan            `json:"selected_plan,omitempty"`
	Amount       int64            `json:"amount,omitempty"`
	SavedNumbers []SavedNumberRef `json:"saved_numbers"`
}

// PurchaseConfirmation is held while waiting for a yes/no answer.
type PurchaseConfirmation struct {
	Plan           *Plan  `json:"plan,omitempty"`
	Amount         int64  `json:"amount,omitempty"`
	PhoneNumber    string `json:"phone_number"`
	SubscriberName string `json:"subscriber_name,omitempty"`
	TransactionID  string `json:"transaction_id"`
}

// NumberContext is held by the flows started from a raw phone number.
type NumberContext struct {
	PhoneNumber    string `json:"phone_number"`
	SubscriberName string `json:"subscriber_name,omitempty"`
	Plans          []Plan `json:"plans,omitempty"`
}

func (Empty) flowData() {}
func (BundleSelection) flowData() {}
func (NumberEntry) flowData() {}
func (SavedNumberChoice) flowData() {}
func (PurchaseConfirmation) flowData() {}
func (NumberContext) flowData() {}

type flowEnvelope struct {
	Version int             `json:"v"`
	Data    json.RawMessage `json:"data"`
}

// EncodeFlow serialises a payload into the versioned envelope.
func EncodeFlow(data FlowData) ([]byte, error) {
	if data == nil {
		data = Empty{}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode flow data: %w", err)
	}
	return json.Marshal(flowEnvelope{Version: FlowVersion, Data: raw})
}

// DecodeFlow restores the payload for state from an envelope produced by EncodeFlow.
func DecodeFlow(state SessionState, raw []byte) (FlowData, error) {
	if len(raw) == 0 {
		return newFlowData(state)
	}

	var env flowEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode flow envelope: %w", err)
	}
	if env.Version != FlowVersion {
		return nil, fmt.Errorf("unsupported flow version %d", env.Version)
	}

	switch state {
	case StateIdle, StateEnteringAmount:
		return Empty{}, nil
	case StateSelectingBundle:
		return decodeAs[BundleSelection](env.Data)
	case StateAwaitingNumber:
		return decodeAs[NumberEntry](env.Data)
	case StateSelectingSavedNumber:
		return decodeAs[SavedNumberChoice](env.Data)
	case StateConfirmingPurchase, StateConfirmingAirtime:
		return decodeAs[PurchaseConfirmation](env.Data)
	case StateNumberSelected, StateSelectingBundleForNumber, StateEnteringAmountForNumber:
		return decodeAs[NumberContext](env.Data)
	default:
		return nil, fmt.Errorf("unknown session state %q", state)
	}
}

func decodeAs[T FlowData](raw json.RawMessage) (FlowData, error) {
	var d T
	if err := decodeInto(raw, &d); err != nil {
		return nil, err
	}
	return d, nil
}

func decodeInto(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode flow data: %w", err)
	}
	return nil
}

func newFlowData(state SessionState) (FlowData, error) {
	switch state {
	case StateIdle, StateEnteringAmount:
		return Empty{}, nil
	case StateSelectingBundle:
		return BundleSelection{}, nil
	case StateAwaitingNumber:
		return NumberEntry{}, nil
	case StateSelectingSavedNumber:
		return SavedNumberChoice{}, nil
	case StateConfirmingPurchase, StateConfirmingAirtime:
		return PurchaseConfirmation{}, nil
	case StateNumberSelected, StateSelectingBundleForNumber, StateEnteringAmountForNumber:
		return NumberContext{}, nil
	default:
		return nil, fmt.Errorf("unknown session state %q", state)
	}
}
