package generation

import (
	"sync"
	"time"

	"genstudio/internal/core"
)

// State is a generation lifecycle state.
type State string

const (
	StateIdle       State = "idle"
	StateSubmitting State = "submitting"
	StateRetrying   State = "retrying"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
)

// Terminal reports whether no further transitions happen without a reset.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// Active reports whether an attempt is outstanding.
func (s State) Active() bool {
	return s == StateSubmitting || s == StateRetrying
}

// AdvisoryOverloaded is shown from the first retry until the generation concludes.
const AdvisoryOverloaded = "upstream is overloaded, please wait"

// Snapshot is a point-in-time copy of the machine.
type Snapshot struct {
	State      State                 `json:"state"`
	Attempt    int                   `json:"attempt"`
	Retries    int                   `json:"retries"`
	Advisory   string                `json:"advisory,omitempty"`
	Error      *core.GenerationError `json:"error,omitempty"`
	Images     []*core.CachedImage   `json:"images,omitempty"`
	RecordID   string                `json:"record_id,omitempty"`
	Prompt     string                `json:"prompt,omitempty"`
	Model      string                `json:"model,omitempty"`
	StartedAt  time.Time             `json:"started_at,omitzero"`
	FinishedAt time.Time             `json:"finished_at,omitzero"`
}

// Machine holds generation state. All transitions go through its methods;
// an invalid transition is rejected and leaves the state unchanged.
type Machine struct {
	mu       sync.Mutex
	snap     Snapshot
	observer func(Snapshot)
}

// NewMachine returns an idle machine.
func NewMachine() *Machine {
	return &Machine{snap: Snapshot{State: StateIdle}}
}

// OnChange registers fn to receive a snapshot after every transition.
func (m *Machine) OnChange(fn func(Snapshot)) {
	m.mu.Lock()
	m.observer = fn
	m.mu.Unlock()
}

// Snapshot returns a copy of the current state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.copyLocked()
}

func (m *Machine) copyLocked() Snapshot {
	s := m.snap
	if s.Images != nil {
		s.Images = append([]*core.CachedImage(nil), s.Images...)
	}
	return s
}

// Begin moves an idle or terminal machine to Submitting for a new generation.
func (m *Machine) Begin(prompt, model string, now time.Time) error {
	return m.transition(func(s *Snapshot) bool {
		if s.State.Active() {
			return false
		}
		*s = Snapshot{State: StateSubmitting, Attempt: 1, Prompt: prompt, Model: model, StartedAt: now}
		return true
	}, core.ErrBusy)
}

// Retry moves Submitting to Retrying. The advisory is set on the first retry only.
func (m *Machine) Retry(lastErr *core.GenerationError) bool {
	return m.transition(func(s *Snapshot) bool {
		if s.State != StateSubmitting {
			return false
		}
		s.State = StateRetrying
		s.Retries++
		s.Error = lastErr
		if s.Retries == 1 {
			s.Advisory = AdvisoryOverloaded
		}
		return true
	}, nil) == nil
}

// Resubmit moves Retrying back to Submitting.
func (m *Machine) Resubmit() bool {
	return m.transition(func(s *Snapshot) bool {
		if s.State != StateRetrying {
			return false
		}
		s.State = StateSubmitting
		s.Attempt++
		return true
	}, nil) == nil
}

// Succeed moves Submitting to Succeeded. A success without images is rejected.
func (m *Machine) Succeed(recordID string, images []*core.CachedImage, now time.Time) bool {
	return m.transition(func(s *Snapshot) bool {
		if s.State != StateSubmitting || len(images) == 0 {
			return false
		}
		s.State = StateSucceeded
		s.RecordID = recordID
		s.Images = append([]*core.CachedImage(nil), images...)
		s.Error = nil
		s.Advisory = ""
		s.FinishedAt = now
		return true
	}, nil) == nil
}

// Fail moves an active machine to Failed.
func (m *Machine) Fail(err *core.GenerationError, now time.Time) bool {
	return m.transition(func(s *Snapshot) bool {
		if !s.State.Active() {
			return false
		}
		s.State = StateFailed
		s.Error = err
		s.Advisory = ""
		s.Images = nil
		s.FinishedAt = now
		return true
	}, nil) == nil
}

// Reset returns a terminal machine to Idle. Resetting an active machine
// returns core.ErrBusy.
func (m *Machine) Reset() error {
	return m.transition(func(s *Snapshot) bool {
		if s.State.Active() {
			return false
		}
		*s = Snapshot{State: StateIdle}
		return true
	}, core.ErrBusy)
}

var errInvalidTransition = core.NewInvalidRequestError("invalid state transition", nil)

func (m *Machine) transition(apply func(*Snapshot) bool, rejected error) error {
	m.mu.Lock()
	if !apply(&m.snap) {
		m.mu.Unlock()
		if rejected != nil {
			return rejected
		}
		return errInvalidTransition
	}
	snap := m.copyLocked()
	observer := m.observer
	m.mu.Unlock()

	if observer != nil {
		observer(snap)
	}
	return nil
}
