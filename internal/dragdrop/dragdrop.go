// Package dragdrop tracks the task being carried between board columns.
//
// The controller has two states. Begin moves it from Idle to Dragging; Drop and
// Cancel always bring it back to Idle. A drop starts the board move and hands
// back the pending write, whose outcome the controller never waits for.
package dragdrop

import (
	"errors"

	"github.com/tgienger/smartpm/internal/board"
	"github.com/tgienger/smartpm/internal/models"
)

// ErrNotDragging is returned by Drop when no task is being carried
var ErrNotDragging = errors.New("no task is being dragged")

// State is the controller state
type State int

const (
	Idle State = iota
	Dragging
)

func (s State) String() string {
	if s == Dragging {
		return "dragging"
	}
	return "idle"
}

// Mover starts an optimistic status change
type Mover interface {
	StartMove(taskID string, status models.Status) (*board.PendingMove, error)
}

// Controller is the drag-and-drop state machine. It is not safe for
// concurrent use; the UI drives it from a single goroutine.
type Controller struct {
	mover   Mover
	state   State
	dragged models.Task
	over    models.Status
}

// New creates an idle controller that moves tasks through mover
func New(mover Mover) *Controller {
	return &Controller{mover: mover}
}

// State returns the current state
func (c *Controller) State() State {
	return c.state
}

// Dragged returns the carried task while Dragging
func (c *Controller) Dragged() (models.Task, bool) {
	if c.state != Dragging {
		return models.Task{}, false
	}
	return c.dragged, true
}

// Over returns the column the carried task hovers over
func (c *Controller) Over() models.Status {
	return c.over
}

// Begin picks up task. Picking up while already dragging replaces the
// carried task.
func (c *Controller) Begin(task models.Task) {
	c.state = Dragging
	c.dragged = task
	c.over = task.Status
}

// Hover records the column under the carried task
func (c *Controller) Hover(status models.Status) {
	if c.state == Dragging && status.Valid() {
		c.over = status
	}
}

// Drop releases the carried task on the column for status. The controller is
// Idle afterwards whether or not the move could be started.
func (c *Controller) Drop(status models.Status) (*board.PendingMove, error) {
	if c.state != Dragging {
		return nil, ErrNotDragging
	}
	task := c.dragged
	c.reset()
	return c.mover.StartMove(task.ID, status)
}

// Cancel abandons the drag without side effects
func (c *Controller) Cancel() {
	c.reset()
}

func (c *Controller) reset() {
	c.state = Idle
	c.dragged = models.Task{}
	c.over = ""
}
