package domain

import (
	"testing"
	"time"
)

func TestEscrowStateTransitions(t *testing.T) {
	tests := []struct {
		from EscrowState
		to   EscrowState
		ok   bool
	}{
		{EscrowStateFunded, EscrowStateAwaitingEvaluation, true},
		{EscrowStateFunded, EscrowStateExpired, true},
		{EscrowStateFunded, EscrowStateReleased, false},
		{EscrowStateAwaitingEvaluation, EscrowStateApproved, true},
		{EscrowStateAwaitingEvaluation, EscrowStateRejected, true},
		{EscrowStateAwaitingEvaluation, EscrowStateExpired, true},
		{EscrowStateAwaitingEvaluation, EscrowStateReleased, false},
		{EscrowStateApproved, EscrowStateReleased, true},
		{EscrowStateApproved, EscrowStateExpired, false}, // evaluation outcome beats deadline
		{EscrowStateApproved, EscrowStateRefunded, false},
		{EscrowStateRejected, EscrowStateRefunded, true},
		{EscrowStateRejected, EscrowStateExpired, false},
		{EscrowStateReleased, EscrowStateRefunded, false},
		{EscrowStateRefunded, EscrowStateFunded, false},
		{EscrowStateExpired, EscrowStateReleased, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.ok {
			t.Errorf("CanTransition(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.ok)
		}
	}
}

func TestEscrowStateTerminal(t *testing.T) {
	terminal := []EscrowState{EscrowStateReleased, EscrowStateRefunded, EscrowStateExpired}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	open := []EscrowState{EscrowStateFunded, EscrowStateAwaitingEvaluation, EscrowStateApproved, EscrowStateRejected}
	for _, s := range open {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestContractExpirable(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name     string
		state    EscrowState
		deadline time.Time
		want     bool
	}{
		{"funded past deadline", EscrowStateFunded, past, true},
		{"awaiting past deadline", EscrowStateAwaitingEvaluation, past, true},
		{"funded before deadline", EscrowStateFunded, future, false},
		{"approved past deadline", EscrowStateApproved, past, false},
		{"rejected past deadline", EscrowStateRejected, past, false},
		{"released past deadline", EscrowStateReleased, past, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := EscrowContract{State: tt.state, Deadline: tt.deadline}
			if got := c.Expirable(now); got != tt.want {
				t.Errorf("Expirable() = %v, want %v", got, tt.want)
			}
		})
	}
}
