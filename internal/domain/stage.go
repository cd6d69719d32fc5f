package domain

import "fmt"

// Stage is the single current fulfillment position of an order.
type Stage string

const (
	StageCart           Stage = "cart"
	StagePlaced         Stage = "placed"
	StageInTransit      Stage = "in_transit"
	StageShipped        Stage = "shipped"
	StageOutForDelivery Stage = "out_for_delivery"
	StageDelivered      Stage = "delivered"
	StageReturned       Stage = "returned"
	StageCanceled       Stage = "canceled"
)

var stageTransitions = map[Stage][]Stage{
	StagePlaced:         {StageInTransit, StageCanceled},
	StageInTransit:      {StageShipped, StageCanceled},
	StageShipped:        {StageOutForDelivery, StageCanceled},
	StageOutForDelivery: {StageDelivered, StageCanceled},
	StageDelivered:      {StageReturned},
}

// ParseStage converts a stored or requested value into a Stage.
func ParseStage(v string) (Stage, error) {
	s := Stage(v)
	switch s {
	case StageCart, StagePlaced, StageInTransit, StageShipped, StageOutForDelivery, StageDelivered, StageReturned, StageCanceled:
		return s, nil
	}
	return "", fmt.Errorf("unknown stage %q", v)
}

// CanTransitionTo reports whether next directly follows s.
func (s Stage) CanTransitionTo(next Stage) bool {
	for _, candidate := range stageTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// Cancelable is true for placed orders that have not been delivered, returned or canceled.
func (s Stage) Cancelable() bool {
	return s.CanTransitionTo(StageCanceled)
}

// Terminal is true when no transition leaves s.
func (s Stage) Terminal() bool {
	return s != StageCart && len(stageTransitions[s]) == 0
}

// RefundStatus tracks the refund side track independently of the stage.
type RefundStatus string

const (
	RefundNone      RefundStatus = "none"
	RefundRequested RefundStatus = "requested"
	RefundGranted   RefundStatus = "granted"
)

// StageFlags is the boolean view of an order's stage and refund status.
type StageFlags struct {
	InTransit       bool `json:"inTransit"`
	Shipped         bool `json:"shipped"`
	OutForDelivery  bool `json:"outForDelivery"`
	Delivered       bool `json:"delivered"`
	Returned        bool `json:"returned"`
	Canceled        bool `json:"canceled"`
	RefundRequested bool `json:"refundRequested"`
	RefundGranted   bool `json:"refundGranted"`
}

// FlagsFor derives the flag view; at most one stage flag is ever set.
func FlagsFor(stage Stage, refund RefundStatus) StageFlags {
	return StageFlags{
		InTransit:       stage == StageInTransit,
		Shipped:         stage == StageShipped,
		OutForDelivery:  stage == StageOutForDelivery,
		Delivered:       stage == StageDelivered,
		Returned:        stage == StageReturned,
		Canceled:        stage == StageCanceled,
		RefundRequested: refund == RefundRequested,
		RefundGranted:   refund == RefundGranted,
	}
}
