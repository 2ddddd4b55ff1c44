package models

import (
	"fmt"

	"github.com/pockethour/image-sentinel/internal/common"
)

type State string

const (
	StateCreated      State = "created"
	StateProcessed    State = "processed"
	StatePaid         State = "paid"
	StateFreeVerified State = "free_verified"
)

// Event is a lifecycle operation that may move a record between states.
type Event string

const (
	EventProcess        Event = "process"
	EventConfirmPayment Event = "confirm_payment"
	EventFreeVerify     Event = "free_verify"
)

// TransitionRule allows Event to move a record from From to To. FreeTier
// restricts the rule to records whose payment state is (or is not) FREE_TIER.
type TransitionRule struct {
	Event    Event
	From     State
	To       State
	FreeTier bool
}

var DefaultTransitions = []TransitionRule{
	{Event: EventProcess, From: StateCreated, To: StateProcessed},
	{Event: EventProcess, From: StateProcessed, To: StateProcessed},
	{Event: EventConfirmPayment, From: StateProcessed, To: StatePaid},
	{Event: EventFreeVerify, From: StateCreated, To: StateFreeVerified, FreeTier: true},
	{Event: EventFreeVerify, From: StateFreeVerified, To: StateFreeVerified, FreeTier: true},
}

// LifecycleMachine validates record transitions against a rule table.
type LifecycleMachine struct {
	transitions []TransitionRule
}

func NewLifecycleMachine() *LifecycleMachine {
	return &LifecycleMachine{transitions: DefaultTransitions}
}

// Next returns the state rec moves to on ev, or a *TransitionError.
func (m *LifecycleMachine) Next(rec *FileRecord, ev Event) (State, error) {
	free := rec.PaymentState == PaymentFreeTier
	for _, t := range m.transitions {
		if t.Event == ev && t.From == rec.State && t.FreeTier == free {
			return t.To, nil
		}
	}
	return "", &TransitionError{
		Event: ev,
		From:  rec.State,
		Tier:  rec.PaymentState,
	}
}

// Allowed reports whether ev is permitted for rec.
func (m *LifecycleMachine) Allowed(rec *FileRecord, ev Event) bool {
	_, err := m.Next(rec, ev)
	return err == nil
}

// TransitionError describes a rejected transition. It matches
// common.ErrInvalidTransition under errors.Is.
type TransitionError struct {
	Event Event
	From  State
	Tier  PaymentState
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s not allowed from state %s (%s)", e.Event, e.From, e.Tier)
}

func (e *TransitionError) Unwrap() error {
	return common.ErrInvalidTransition
}
