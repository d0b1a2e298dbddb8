package board

import (
	"errors"
	"strings"
)

// Domain errors for the board. The validation messages are shown to the user
// as written, so they read as sentences.
var (
	// Validation errors
	ErrEmptyTitle    = errors.New("Task title is required.")
	ErrNoChanges     = errors.New("No changes detected. Please modify the title, description, AI description or story points.")
	ErrInvalidStatus = errors.New("invalid task status")

	// State errors
	ErrTaskNotFound = errors.New("task is not on this board")
)

// PartialEditError reports an edit whose story point write and text write did
// not both succeed. Result tells which half was applied.
type PartialEditError struct {
	Result    EditResult
	PointsErr error
	TextErr   error
}

func (e *PartialEditError) Error() string {
	var parts []string
	if e.PointsErr != nil {
		parts = append(parts, "story points not saved: "+e.PointsErr.Error())
	}
	if e.TextErr != nil {
		parts = append(parts, "text not saved: "+e.TextErr.Error())
	}
	return strings.Join(parts, "; ")
}

func (e *PartialEditError) Unwrap() []error {
	var errs []error
	if e.PointsErr != nil {
		errs = append(errs, e.PointsErr)
	}
	if e.TextErr != nil {
		errs = append(errs, e.TextErr)
	}
	return errs
}
