// Package board owns the task collection of one project and keeps it in step
// with the table store and the indexing service.
//
// Status moves are applied optimistically. Each move is tagged with a per-task
// sequence number and only the latest move of a task may roll back or settle
// it, so a slow response for an earlier move never overwrites a newer one.
package board

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/tgienger/smartpm/internal/api"
	"github.com/tgienger/smartpm/internal/models"
	"github.com/tgienger/smartpm/internal/session"
	"github.com/tgienger/smartpm/internal/store"
)

// TaskAPI is the part of the indexing service the board writes through
type TaskAPI interface {
	CreateTask(ctx context.Context, req api.CreateTaskRequest) error
	EditTask(ctx context.Context, req api.EditTaskRequest) error
	DeleteTask(ctx context.Context, taskID, projectID string) error
}

// Columns maps every status to the tasks currently in it, in fetch order
type Columns map[models.Status][]models.Task

// Option configures a Board
type Option func(*Board)

// WithLogger sets the logger used for failed network operations
func WithLogger(logger *slog.Logger) Option {
	return func(b *Board) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// inflight tracks the unsettled moves of one task. base is the status the
// store is believed to hold, target the status of the newest move.
type inflight struct {
	seq    uint64
	base   models.Status
	target models.Status
}

// Board is safe for concurrent use
type Board struct {
	projectID string
	store     store.TableStore
	api       TaskAPI
	session   *session.Session
	logger    *slog.Logger

	mu      sync.Mutex
	project *models.Project
	tasks   []models.Task
	loading bool
	loadGen uint64
	err     error
	seq     map[string]uint64
	moves   map[string]*inflight
}

// New creates an empty board for projectID. Call Open or Load to fill it.
func New(projectID string, ts store.TableStore, taskAPI TaskAPI, sess *session.Session, opts ...Option) *Board {
	b := &Board{
		projectID: projectID,
		store:     ts,
		api:       taskAPI,
		session:   sess,
		logger:    slog.Default(),
		seq:       make(map[string]uint64),
		moves:     make(map[string]*inflight),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// ProjectID returns the project this board shows
func (b *Board) ProjectID() string {
	return b.projectID
}

// Project returns the project details read by Open, or nil
func (b *Board) Project() *models.Project {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.project == nil {
		return nil
	}
	p := *b.project
	return &p
}

// Open reads the project details and its tasks concurrently
func (b *Board) Open(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		p, err := b.store.GetProject(gctx, b.projectID)
		if err != nil {
			return fmt.Errorf("load project: %w", err)
		}
		b.mu.Lock()
		b.project = p
		b.mu.Unlock()
		return nil
	})
	g.Go(func() error {
		return b.Load(gctx)
	})

	if err := g.Wait(); err != nil {
		b.record("open board", err)
		return err
	}
	return nil
}

// Load replaces the task collection with what the store holds. A load that is
// overtaken by a newer one is discarded. Tasks of other projects are dropped
// and unknown statuses become todo.
func (b *Board) Load(ctx context.Context) error {
	b.mu.Lock()
	b.loadGen++
	gen := b.loadGen
	b.loading = true
	b.mu.Unlock()

	tasks, err := b.store.ListTasks(ctx, b.projectID)

	b.mu.Lock()
	defer b.mu.Unlock()
	if gen != b.loadGen {
		return nil
	}
	b.loading = false
	if err != nil {
		b.err = err
		b.logger.Warn("failed to load tasks", slog.String("project_id", b.projectID), slog.Any("error", err))
		return err
	}

	loaded := make([]models.Task, 0, len(tasks))
	for _, t := range tasks {
		if t.ProjectID != b.projectID {
			continue
		}
		if !t.Status.Valid() {
			t.Status = models.ParseStatus(string(t.Status))
		}
		// keep unsettled moves visible across a reload
		if m, ok := b.moves[t.ID]; ok {
			m.base = t.Status
			t.Status = m.target
		}
		loaded = append(loaded, t)
	}
	b.tasks = loaded
	b.err = nil
	return nil
}

// Loading reports whether a load is in flight
func (b *Board) Loading() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loading
}

// Err returns the last failed operation's error
func (b *Board) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

// ClearErr forgets the last error
func (b *Board) ClearErr() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.err = nil
}

// Tasks returns a copy of the task collection
func (b *Board) Tasks() []models.Task {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]models.Task, len(b.tasks))
	copy(out, b.tasks)
	return out
}

// Task returns the task with id
func (b *Board) Task(id string) (models.Task, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.indexOf(id)
	if i < 0 {
		return models.Task{}, false
	}
	return b.tasks[i], true
}

// Columns partitions the tasks by status. Every status has an entry.
func (b *Board) Columns() Columns {
	b.mu.Lock()
	defer b.mu.Unlock()
	cols := make(Columns, len(models.Statuses))
	for _, s := range models.Statuses {
		cols[s] = []models.Task{}
	}
	for _, t := range b.tasks {
		cols[t.Status] = append(cols[t.Status], t)
	}
	return cols
}

// PendingMove is a status change applied locally and not yet persisted
type PendingMove struct {
	TaskID string
	From   models.Status
	To     models.Status
	Seq    uint64

	board *Board
	noop  bool
}

// StartMove moves the task to status in memory and returns the write that
// persists it. Moving a task to the status it already has is a no-op.
func (b *Board) StartMove(taskID string, status models.Status) (*PendingMove, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}
	if _, err := b.session.RequireUser(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	i := b.indexOf(taskID)
	if i < 0 {
		return nil, ErrTaskNotFound
	}
	from := b.tasks[i].Status
	if from == status {
		return &PendingMove{TaskID: taskID, From: from, To: status, board: b, noop: true}, nil
	}

	b.seq[taskID]++
	seq := b.seq[taskID]
	if m, ok := b.moves[taskID]; ok {
		m.seq = seq
		m.target = status
	} else {
		b.moves[taskID] = &inflight{seq: seq, base: from, target: status}
	}
	b.tasks[i].Status = status

	return &PendingMove{TaskID: taskID, From: from, To: status, Seq: seq, board: b}, nil
}

// Persist writes the move to the store. On failure the task returns to the
// last status the store is known to hold, unless a newer move of the same task
// has been started since, in which case this result is discarded.
func (m *PendingMove) Persist(ctx context.Context) error {
	if m.noop {
		return nil
	}
	err := m.board.store.UpdateTaskStatus(ctx, m.TaskID, m.To)
	m.board.settle(m, err)
	return err
}

// MoveTask moves a task and persists the change
func (b *Board) MoveTask(ctx context.Context, taskID string, status models.Status) error {
	move, err := b.StartMove(taskID, status)
	if err != nil {
		return err
	}
	return move.Persist(ctx)
}

func (b *Board) settle(m *PendingMove, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	state, ok := b.moves[m.TaskID]
	if !ok {
		return
	}
	latest := state.seq == m.Seq

	if err == nil {
		if latest {
			delete(b.moves, m.TaskID)
		} else {
			state.base = m.To
		}
		return
	}

	if !latest {
		b.logger.Debug("discarding stale move failure",
			slog.String("task_id", m.TaskID), slog.Uint64("seq", m.Seq), slog.Any("error", err))
		return
	}
	delete(b.moves, m.TaskID)
	if i := b.indexOf(m.TaskID); i >= 0 {
		b.tasks[i].Status = state.base
	}
	b.err = fmt.Errorf("Failed to move task: %w", err)
	b.logger.Warn("failed to move task",
		slog.String("task_id", m.TaskID), slog.String("status", string(m.To)), slog.Any("error", err))
}

// NewTask holds the fields of a task to create
type NewTask struct {
	Title           string
	UserDescription string
	Status          models.Status
	Model           models.ModelSelector
}

// CreateTask asks the indexing service to create and enrich a task, then
// reloads. Nothing is inserted locally before the service confirms. Once the
// service has accepted the task the call succeeds even if the reload fails.
func (b *Board) CreateTask(ctx context.Context, nt NewTask) error {
	title := strings.TrimSpace(nt.Title)
	if title == "" {
		return ErrEmptyTitle
	}
	userID, err := b.session.RequireUser()
	if err != nil {
		return err
	}
	status := nt.Status
	if !status.Valid() {
		status = models.StatusTodo
	}
	model := nt.Model
	if model == "" {
		model = models.DefaultModel
	}

	err = b.api.CreateTask(ctx, api.CreateTaskRequest{
		ProjectID:       b.projectID,
		Title:           title,
		UserDescription: strings.TrimSpace(nt.UserDescription),
		Status:          status,
		Model:           model,
		UserID:          userID,
	})
	if err != nil {
		b.record("create task", err)
		return err
	}
	// the task exists now; a failed refresh is left in Err
	_ = b.Load(ctx)
	return nil
}

// DeleteTask deletes a task through the indexing service and removes it from
// the board. A task the service no longer knows counts as deleted.
func (b *Board) DeleteTask(ctx context.Context, taskID string) error {
	if _, err := b.session.RequireUser(); err != nil {
		return err
	}
	if err := b.api.DeleteTask(ctx, taskID, b.projectID); err != nil {
		b.record("delete task", err)
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if i := b.indexOf(taskID); i >= 0 {
		b.tasks = append(b.tasks[:i], b.tasks[i+1:]...)
	}
	delete(b.moves, taskID)
	return nil
}

func (b *Board) record(op string, err error) {
	b.mu.Lock()
	b.err = err
	b.mu.Unlock()
	b.logger.Warn("board operation failed",
		slog.String("op", op), slog.String("project_id", b.projectID), slog.Any("error", err))
}

func (b *Board) indexOf(id string) int {
	for i := range b.tasks {
		if b.tasks[i].ID == id {
			return i
		}
	}
	return -1
}
