package ui

import (
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tgienger/smartpm/internal/api"
	"github.com/tgienger/smartpm/internal/board"
	"github.com/tgienger/smartpm/internal/config"
	"github.com/tgienger/smartpm/internal/projects"
	"github.com/tgienger/smartpm/internal/session"
	"github.com/tgienger/smartpm/internal/store"
	"github.com/tgienger/smartpm/internal/ui/views"
)

// Currently active view
type View int

const (
	ViewProjects View = iota
	ViewBoard
)

// Deps are the services the UI runs on
type Deps struct {
	Config  *config.Config
	Session *session.Session
	Store   store.TableStore
	API     *api.Client
	Logger  *slog.Logger
}

type App struct {
	deps        Deps
	manager     *projects.Manager
	currentView View
	projectList *views.ProjectListView
	boardView   *views.BoardView
	width       int
	height      int
}

// NewApp creates a new application
func NewApp(deps Deps) *App {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	manager := projects.New(deps.Store, deps.API, deps.Session, deps.Logger)
	return &App{
		deps:        deps,
		manager:     manager,
		currentView: ViewProjects,
		projectList: views.NewProjectListView(manager, deps.Session),
	}
}

func (a *App) Init() tea.Cmd {
	// Reopen the last board, if any
	if id := a.deps.Config.LastProjectID; id != "" && a.deps.Session.Authenticated() {
		return tea.Batch(a.projectList.Init(), a.openProject(id))
	}
	return a.projectList.Init()
}

func (a *App) openProject(projectID string) tea.Cmd {
	a.currentView = ViewBoard
	b := board.New(projectID, a.deps.Store, a.deps.API, a.deps.Session, board.WithLogger(a.deps.Logger))
	a.boardView = views.NewBoardView(b, a.deps.API, a.deps.Session, views.BoardSettings{
		Model:       a.deps.Config.Model,
		DownloadDir: a.deps.Config.DownloadDir,
	})
	a.rememberProject(projectID)

	// Initialize board with window size
	return tea.Batch(
		a.boardView.Init(),
		func() tea.Msg {
			return tea.WindowSizeMsg{Width: a.width, Height: a.height}
		},
	)
}

func (a *App) rememberProject(projectID string) {
	cfg := a.deps.Config
	if cfg.LastProjectID == projectID {
		return
	}
	cfg.LastProjectID = projectID
	if err := cfg.Save(); err != nil {
		a.deps.Logger.Warn("failed to save last project", slog.Any("error", err))
	}
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		// Always update project list size since it persists
		a.projectList.Update(msg)

	case views.SelectedProject:
		return a, a.openProject(msg.Project.ID)

	case views.BackToProjects:
		a.currentView = ViewProjects
		a.boardView = nil
		a.rememberProject("")
		return a, tea.Batch(
			a.projectList.Init(),
			func() tea.Msg {
				return tea.WindowSizeMsg{Width: a.width, Height: a.height}
			},
		)
	}

	var cmd tea.Cmd
	switch a.currentView {
	case ViewProjects:
		_, cmd = a.projectList.Update(msg)
	case ViewBoard:
		_, cmd = a.boardView.Update(msg)
	}

	return a, cmd
}

func (a *App) View() string {
	if a.currentView == ViewBoard && a.boardView != nil {
		return a.boardView.View()
	}
	return a.projectList.View()
}
