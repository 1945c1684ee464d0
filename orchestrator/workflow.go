package orchestrator

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

type PhaseState uint8

const (
	PhasePending PhaseState = iota
	PhaseSkipped
	PhaseConfirmed
	PhaseFailed
)

func (s PhaseState) String() string {
	switch s {
	case PhasePending:
		return "pending"
	case PhaseSkipped:
		return "skipped"
	case PhaseConfirmed:
		return "confirmed"
	case PhaseFailed:
		return "failed"
	}
	return "unknown"
}

type PhaseName string

const (
	// allowance grant to the escrow contract
	PhaseAllowance PhaseName = "allowance"
	// the escrow action itself (create, complete, cancel, addToken)
	PhaseAction PhaseName = "action"
)

type Phase struct {
	Name   PhaseName
	State  PhaseState
	TxHash common.Hash
	Err    error
}

func (p Phase) MarshalJSON() ([]byte, error) {
	out := struct {
		Name   PhaseName `json:"name"`
		State  string    `json:"state"`
		TxHash string    `json:"txHash,omitempty"`
		Error  string    `json:"error,omitempty"`
	}{Name: p.Name, State: p.State.String()}
	if p.TxHash != (common.Hash{}) {
		out.TxHash = p.TxHash.Hex()
	}
	if p.Err != nil {
		out.Error = p.Err.Error()
	}
	return json.Marshal(out)
}

// Workflow is one grant-then-act write. The two phases are separate ledger
// transactions: a confirmed allowance followed by a failed action leaves the
// allowance in place.
type Workflow struct {
	ID      string
	Action  string
	Subject string
	Started time.Time

	mu       sync.RWMutex
	phases   [2]Phase
	finished time.Time
	observer func(*Workflow)
}

func newWorkflow(action, subject string, observer func(*Workflow)) *Workflow {
	return &Workflow{
		ID:      uuid.New().String(),
		Action:  action,
		Subject: subject,
		Started: time.Now(),
		phases: [2]Phase{
			{Name: PhaseAllowance, State: PhasePending},
			{Name: PhaseAction, State: PhasePending},
		},
		observer: observer,
	}
}

func index(name PhaseName) int {
	if name == PhaseAllowance {
		return 0
	}
	return 1
}

func (w *Workflow) Phase(name PhaseName) Phase {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.phases[index(name)]
}

func (w *Workflow) set(name PhaseName, state PhaseState, txHash common.Hash, err error) {
	w.mu.Lock()
	p := &w.phases[index(name)]
	p.State = state
	if txHash != (common.Hash{}) {
		p.TxHash = txHash
	}
	p.Err = err
	if name == PhaseAction && state != PhasePending {
		w.finished = time.Now()
	}
	if name == PhaseAllowance && state == PhaseFailed {
		// the action is never attempted after a failed grant
		w.phases[1].State = PhaseSkipped
		w.finished = time.Now()
	}
	w.mu.Unlock()

	if w.observer != nil {
		w.observer(w)
	}
}

// Done reports whether no phase is pending any more.
func (w *Workflow) Done() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return !w.finished.IsZero()
}

// Succeeded is true once the action phase is confirmed.
func (w *Workflow) Succeeded() bool {
	return w.Phase(PhaseAction).State == PhaseConfirmed
}

// LeftoverAllowance is true when a grant was confirmed but the action that
// needed it failed.
func (w *Workflow) LeftoverAllowance() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.phases[0].State == PhaseConfirmed && w.phases[1].State == PhaseFailed
}

func (w *Workflow) MarshalJSON() ([]byte, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := struct {
		ID                string     `json:"id"`
		Action            string     `json:"action"`
		Subject           string     `json:"subject"`
		Started           time.Time  `json:"started"`
		Finished          *time.Time `json:"finished,omitempty"`
		Phases            [2]Phase   `json:"phases"`
		LeftoverAllowance bool       `json:"leftoverAllowance,omitempty"`
	}{
		ID:                w.ID,
		Action:            w.Action,
		Subject:           w.Subject,
		Started:           w.Started,
		Phases:            w.phases,
		LeftoverAllowance: w.phases[0].State == PhaseConfirmed && w.phases[1].State == PhaseFailed,
	}
	if !w.finished.IsZero() {
		f := w.finished
		out.Finished = &f
	}
	return json.Marshal(out)
}
