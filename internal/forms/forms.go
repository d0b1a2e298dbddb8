// Package forms implements the create and edit dialogs for projects and tasks
// independently of how they are drawn.
//
// A form is a short-lived session: Open seeds it, Escape discards it and
// Submit validates locally before handing the values to its manager. The
// manager refreshes the shared collection after a write it accepted, and the
// form then closes. A failed submission keeps the form open with the entered
// values. Every Open starts a new session, so a response that arrives after
// its form was closed or reopened only reaches the shared state and never the
// newer session.
package forms

import (
	"errors"
	"sync"
)

// Mode tells whether a form creates or edits
type Mode int

const (
	Create Mode = iota
	Edit
)

func (m Mode) String() string {
	if m == Edit {
		return "edit"
	}
	return "create"
}

// Validation errors are shown beneath the form as written
var (
	ErrNameRequired       = errors.New("Project name is required.")
	ErrTitleRequired      = errors.New("Task title is required.")
	ErrInvalidStoryPoints = errors.New("Story points must be a non-negative whole number.")
	ErrNotOpen            = errors.New("form is not open")
	ErrBusy               = errors.New("form is already submitting")
)

// lifecycle is the open/submit bookkeeping shared by every form
type lifecycle struct {
	mu         sync.Mutex
	mode       Mode
	open       bool
	submitting bool
	gen        uint64
	err        error
}

// begin starts a new session. Caller holds mu.
func (l *lifecycle) begin(mode Mode) {
	l.gen++
	l.mode = mode
	l.open = true
	l.submitting = false
	l.err = nil
}

// end closes the session. Caller holds mu.
func (l *lifecycle) end() {
	l.gen++
	l.open = false
	l.submitting = false
	l.err = nil
}

// IsOpen reports whether the form is shown
func (l *lifecycle) IsOpen() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.open
}

// Mode returns whether the form creates or edits
func (l *lifecycle) Mode() Mode {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.mode
}

// Submitting reports whether a submission is in flight
func (l *lifecycle) Submitting() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.submitting
}

// Err returns the error shown beneath the form
func (l *lifecycle) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// Close hides the form
func (l *lifecycle) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.end()
}

// Escape closes the form without submitting and discards the entered values
func (l *lifecycle) Escape() {
	l.Close()
}

// start marks a submission in flight and returns its session, or the reason
// it cannot start. Caller holds mu.
func (l *lifecycle) start() (uint64, error) {
	if !l.open {
		return 0, ErrNotOpen
	}
	if l.submitting {
		return 0, ErrBusy
	}
	l.submitting = true
	l.err = nil
	return l.gen, nil
}

// reject records a local validation failure. Caller holds mu.
func (l *lifecycle) reject(err error) error {
	l.err = err
	return err
}

// finish settles a submission of session gen. It reports whether the session
// is still current.
func (l *lifecycle) finish(gen uint64, err error) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if gen != l.gen {
		return false
	}
	l.submitting = false
	if err != nil {
		l.err = err
		return true
	}
	l.end()
	return true
}
