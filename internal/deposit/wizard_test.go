package deposit

import (
	"context"
	"errors"
	"testing"

	"github.com/betdesk/gotrader/internal/approval"
)

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		name string
		prev State
		orch approval.State
		want State
	}{
		{
			name: "fresh account needs usdc",
			prev: State{Step: StepChecking},
			orch: approval.StateNeedsUsdcApproval,
			want: State{Step: StepApproveUsdc},
		},
		{
			name: "usdc done moves to operators",
			prev: State{Step: StepApproveUsdc},
			orch: approval.StateNeedsPositionTokenApproval,
			want: State{Step: StepApprovePositionTokens},
		},
		{
			name: "operators done moves to deposit",
			prev: State{Step: StepApprovePositionTokens},
			orch: approval.StateNeedsDeposit,
			want: State{Step: StepDeposit},
		},
		{
			name: "finishing from an action step flags retry",
			prev: State{Step: StepDeposit},
			orch: approval.StateComplete,
			want: State{Step: StepDone, PendingRetry: true},
		},
		{
			name: "finishing from checking does not flag retry",
			prev: State{Step: StepChecking},
			orch: approval.StateComplete,
			want: State{Step: StepDone},
		},
		{
			name: "pending retry carried across steps",
			prev: State{Step: StepApproveUsdc, PendingRetry: true},
			orch: approval.StateNeedsPositionTokenApproval,
			want: State{Step: StepApprovePositionTokens, PendingRetry: true},
		},
		{
			name: "orchestrator error fails the wizard",
			prev: State{Step: StepApproveUsdc},
			orch: approval.StateError,
			want: State{Step: StepFailed},
		},
		{
			name: "revoking maps back to checking",
			prev: State{Step: StepDone},
			orch: approval.StateRevoking,
			want: State{Step: StepChecking},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Transition(tt.prev, tt.orch)
			if got != tt.want {
				t.Fatalf("Transition(%+v, %s) = %+v, want %+v", tt.prev, tt.orch, got, tt.want)
			}
		})
	}
}

// scriptedOrchestrator walks a fixed sequence of states, one per call
// into the orchestrator.
type scriptedOrchestrator struct {
	states  []approval.State
	pos     int
	failErr error
	skipped bool
}

func (s *scriptedOrchestrator) advance() error {
	if s.failErr != nil {
		return s.failErr
	}
	if s.pos < len(s.states)-1 {
		s.pos++
	}
	return nil
}

func (s *scriptedOrchestrator) CheckStatus(context.Context) (*approval.Status, error) {
	return &approval.Status{}, s.advance()
}

func (s *scriptedOrchestrator) ApproveUsdc(context.Context, bool) error { return s.advance() }

func (s *scriptedOrchestrator) ApprovePositionTokens(context.Context, bool) error {
	return s.advance()
}

func (s *scriptedOrchestrator) Deposit(context.Context, float64) error { return s.advance() }

func (s *scriptedOrchestrator) State() approval.State { return s.states[s.pos] }

func (s *scriptedOrchestrator) Skip() {
	s.skipped = true
	if s.pos < len(s.states)-1 {
		s.pos++
	}
}

func TestWizardFullFlow(t *testing.T) {
	orch := &scriptedOrchestrator{states: []approval.State{
		approval.StateChecking,
		approval.StateNeedsUsdcApproval,
		approval.StateNeedsPositionTokenApproval,
		approval.StateNeedsDeposit,
		approval.StateComplete,
	}}
	w := NewWizard(orch, false)

	steps := []Step{StepApproveUsdc, StepApprovePositionTokens, StepDeposit, StepDone}
	for _, want := range steps {
		state, err := w.Advance(context.Background(), 25)
		if err != nil {
			t.Fatalf("Advance: %v", err)
		}
		if state.Step != want {
			t.Fatalf("step = %s, want %s", state.Step, want)
		}
	}

	if !w.State().PendingRetry {
		t.Fatalf("completed setup flow must flag a pending retry")
	}
	if !w.ConsumeRetry() {
		t.Fatalf("ConsumeRetry returned false with retry pending")
	}
	if w.State().PendingRetry {
		t.Fatalf("retry flag not cleared after consumption")
	}
}

func TestWizardFailureIsResumable(t *testing.T) {
	orch := &scriptedOrchestrator{states: []approval.State{
		approval.StateChecking,
		approval.StateNeedsUsdcApproval,
	}}
	w := NewWizard(orch, false)

	if _, err := w.Advance(context.Background(), 0); err != nil {
		t.Fatalf("Advance: %v", err)
	}

	orch.failErr = errors.New("rpc down")
	if _, err := w.Advance(context.Background(), 0); err == nil {
		t.Fatalf("expected step failure")
	}
	if w.State().Step != StepFailed {
		t.Fatalf("step = %s, want failed", w.State().Step)
	}

	// Recovery re-checks and lands back where the chain says we are.
	orch.failErr = nil
	state, err := w.Advance(context.Background(), 0)
	if err != nil {
		t.Fatalf("resume Advance: %v", err)
	}
	if state.Step != StepApproveUsdc {
		t.Fatalf("resumed step = %s, want approveUsdc", state.Step)
	}
}

func TestWizardSkip(t *testing.T) {
	orch := &scriptedOrchestrator{states: []approval.State{
		approval.StateChecking,
		approval.StateNeedsUsdcApproval,
		approval.StateComplete,
	}}
	w := NewWizard(orch, false)

	if _, err := w.Advance(context.Background(), 0); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	state := w.Skip()
	if !orch.skipped {
		t.Fatalf("skip not forwarded to orchestrator")
	}
	if state.Step != StepDone {
		t.Fatalf("step after skip = %s, want done", state.Step)
	}
}
