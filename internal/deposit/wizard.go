// Package deposit sequences approvals and balance transfers into a
// guided, resumable flow. The wizard never caches on-chain truth: each
// transition is computed from the orchestrator's freshly derived state.
package deposit

import (
	"context"
	"fmt"

	"github.com/betdesk/gotrader/internal/approval"
	"github.com/betdesk/gotrader/pkg/logger"
)

// Step is the wizard's current position.
type Step string

const (
	StepChecking              Step = "checking"
	StepApproveUsdc           Step = "approveUsdc"
	StepApprovePositionTokens Step = "approvePositionTokens"
	StepDeposit               Step = "deposit"
	StepDone                  Step = "done"
	StepFailed                Step = "failed"
)

// State is the wizard's resumable state. PendingRetry survives until the
// caller consumes it: when setup work happened on the way to done, the
// action that triggered the wizard should be retried, and that decision
// must not live in implicit control flow.
type State struct {
	Step         Step
	PendingRetry bool
}

// Transition computes the next wizard state from the orchestrator's
// state. Pure function, table-tested.
func Transition(prev State, orch approval.State) State {
	next := State{PendingRetry: prev.PendingRetry}

	switch orch {
	case approval.StateNeedsUsdcApproval:
		next.Step = StepApproveUsdc
	case approval.StateNeedsPositionTokenApproval:
		next.Step = StepApprovePositionTokens
	case approval.StateNeedsDeposit:
		next.Step = StepDeposit
	case approval.StateComplete:
		next.Step = StepDone
	case approval.StateError:
		next.Step = StepFailed
	default:
		next.Step = StepChecking
	}

	// Reaching done from an action step means setup work was performed
	// on the way; the interrupted user action wants a retry.
	if next.Step == StepDone && actionStep(prev.Step) {
		next.PendingRetry = true
	}
	return next
}

func actionStep(s Step) bool {
	switch s {
	case StepApproveUsdc, StepApprovePositionTokens, StepDeposit:
		return true
	}
	return false
}

// Orchestrator is the approval surface the wizard drives.
// *approval.Orchestrator satisfies it.
type Orchestrator interface {
	CheckStatus(ctx context.Context) (*approval.Status, error)
	ApproveUsdc(ctx context.Context, sponsored bool) error
	ApprovePositionTokens(ctx context.Context, sponsored bool) error
	Deposit(ctx context.Context, amount float64) error
	State() approval.State
	Skip()
}

// Wizard walks a user through the setup flow one Advance at a time.
type Wizard struct {
	orch      Orchestrator
	sponsored bool
	state     State
}

// NewWizard builds a wizard. sponsored selects the gasless relay path
// for approval steps.
func NewWizard(orch Orchestrator, sponsored bool) *Wizard {
	return &Wizard{orch: orch, sponsored: sponsored, state: State{Step: StepChecking}}
}

// State returns the current resumable state.
func (w *Wizard) State() State {
	return w.state
}

// ConsumeRetry reports and clears the pending-retry flag.
func (w *Wizard) ConsumeRetry() bool {
	retry := w.state.PendingRetry
	w.state.PendingRetry = false
	return retry
}

// Advance performs the current step's work and recomputes the state.
// depositAmount only matters when the current step is the deposit.
// From failed it re-checks and resumes where the chain says we are.
func (w *Wizard) Advance(ctx context.Context, depositAmount float64) (State, error) {
	var err error
	switch w.state.Step {
	case StepChecking, StepFailed, StepDone:
		_, err = w.orch.CheckStatus(ctx)
	case StepApproveUsdc:
		err = w.orch.ApproveUsdc(ctx, w.sponsored)
	case StepApprovePositionTokens:
		err = w.orch.ApprovePositionTokens(ctx, w.sponsored)
	case StepDeposit:
		err = w.orch.Deposit(ctx, depositAmount)
	default:
		err = fmt.Errorf("unknown wizard step %q", w.state.Step)
	}

	if err != nil {
		logger.Warnf("deposit wizard: step %s failed: %v", w.state.Step, err)
		w.state.Step = StepFailed
		return w.state, err
	}

	w.state = Transition(w.state, w.orch.State())
	return w.state, nil
}

// Skip forces past the current approval step on user request. The
// orchestrator re-validates the skipped gate on its next natural check.
func (w *Wizard) Skip() State {
	if !actionStep(w.state.Step) {
		return w.state
	}
	w.orch.Skip()
	w.state = Transition(w.state, w.orch.State())
	return w.state
}

// Recheck recomputes the state from a fresh status without performing
// any step work.
func (w *Wizard) Recheck(ctx context.Context) (State, error) {
	if _, err := w.orch.CheckStatus(ctx); err != nil {
		w.state.Step = StepFailed
		return w.state, err
	}
	w.state = Transition(w.state, w.orch.State())
	return w.state, nil
}
