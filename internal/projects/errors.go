package projects

import "errors"

// Domain errors for the project list. Their text is shown to the user as
// written, so it reads as sentences.
var (
	// Validation errors
	ErrNameRequired = errors.New("Project name is required.")
	ErrNoChanges    = errors.New("No changes detected. Please modify the title or description.")

	// Business logic errors
	ErrProjectNotFound = errors.New("No project selected for editing.")
)
