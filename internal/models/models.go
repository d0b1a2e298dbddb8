package models

import "strings"

// Status is the board column a task currently sits in
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusInReview   Status = "in_review"
	StatusDone       Status = "done"
)

// Statuses lists the board columns left to right
var Statuses = []Status{StatusTodo, StatusInProgress, StatusInReview, StatusDone}

// Valid reports whether s is one of the four board statuses
func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusInReview, StatusDone:
		return true
	}
	return false
}

// Label returns the column heading for the status
func (s Status) Label() string {
	switch s {
	case StatusInProgress:
		return "In Progress"
	case StatusInReview:
		return "In Review"
	case StatusDone:
		return "Done"
	default:
		return "To Do"
	}
}

// ParseStatus normalises a stored or user-supplied status. Legacy camelCase
// values are mapped to their snake_case form; "none", empty and unknown values
// become todo.
func ParseStatus(raw string) Status {
	switch strings.TrimSpace(raw) {
	case "in_progress", "inProgress":
		return StatusInProgress
	case "in_review", "inReview":
		return StatusInReview
	case "done":
		return StatusDone
	default:
		return StatusTodo
	}
}

// ModelSelector names the AI model the backend should use for enrichment
type ModelSelector string

const (
	ModelOpenAI ModelSelector = "openai"
	ModelGemini ModelSelector = "gemini"
)

// DefaultModel is used when no selector is configured
const DefaultModel = ModelOpenAI

// AllowedStoryPoints are the estimates the enrichment service produces
var AllowedStoryPoints = []int{1, 2, 3, 5, 8, 13}

// Project represents a task management project
type Project struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	OwnerID     string `json:"user_id"`
}

// Task represents a single card on a project board
type Task struct {
	ID              string  `json:"id"`
	ProjectID       string  `json:"project_id"`
	Title           string  `json:"title"`
	UserDescription string  `json:"description"`
	AIDescription   *string `json:"ai_description"`
	StoryPoints     *int    `json:"story_points"`
	Status          Status  `json:"status"`
}

// AIText returns the AI description or an empty string when enrichment has
// not completed
func (t Task) AIText() string {
	if t.AIDescription == nil {
		return ""
	}
	return *t.AIDescription
}
