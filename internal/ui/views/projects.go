package views

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tgienger/smartpm/internal/forms"
	"github.com/tgienger/smartpm/internal/models"
	"github.com/tgienger/smartpm/internal/projects"
	"github.com/tgienger/smartpm/internal/session"
	"github.com/tgienger/smartpm/internal/ui/keys"
	"github.com/tgienger/smartpm/internal/ui/styles"
)

type projectsLoadedMsg struct{ err error }

type projectFormDoneMsg struct{ err error }

type projectDeletedMsg struct{ err error }

// SelectedProject asks the app to open the board of Project
type SelectedProject struct {
	Project models.Project
}

// ProjectListView lists the user's projects with fuzzy search and the create,
// edit and delete dialogs
type ProjectListView struct {
	manager *projects.Manager
	session *session.Session
	form    *forms.ProjectForm
	fields  *fieldSet
	styles  *styles.Styles
	keys    keys.KeyMap
	spinner spinner.Model

	width  int
	height int
	cursor int

	search    textinput.Model
	searching bool

	confirmingDelete bool
	deleteTarget     models.Project
	notice           string

	// Help popup (shown with ? at narrow widths)
	showHelpPopup bool
}

// NewProjectListView creates the view over a shared manager
func NewProjectListView(manager *projects.Manager, sess *session.Session) *ProjectListView {
	search := textinput.New()
	search.Placeholder = "Search projects..."
	search.CharLimit = 100

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(styles.Current.Primary)

	return &ProjectListView{
		manager: manager,
		session: sess,
		form:    forms.NewProjectForm(manager),
		fields: newFieldSet(
			newLineField("Name", "Project name", 100),
			newAreaField("Description", "Description (optional)", 1000, 3),
		),
		styles:  styles.NewStyles(),
		keys:    keys.DefaultKeyMap(),
		spinner: sp,
		search:  search,
	}
}

// Init loads the project list
func (v *ProjectListView) Init() tea.Cmd {
	return tea.Batch(v.load, v.spinner.Tick)
}

func (v *ProjectListView) load() tea.Msg {
	return projectsLoadedMsg{err: v.manager.Load(context.Background())}
}

func (v *ProjectListView) selected() (models.Project, bool) {
	visible := v.manager.Visible()
	if v.cursor < 0 || v.cursor >= len(visible) {
		return models.Project{}, false
	}
	return visible[v.cursor], true
}

func (v *ProjectListView) clampCursor() {
	v.cursor = clamp(v.cursor, 0, max(0, len(v.manager.Visible())-1))
}

// Update handles messages
func (v *ProjectListView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		v.fields.setWidth(clamp(styles.ContentWidth(v.width)-10, 20, 50))
		return v, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		v.spinner, cmd = v.spinner.Update(msg)
		return v, cmd

	case projectsLoadedMsg:
		v.clampCursor()
		return v, nil

	case projectFormDoneMsg:
		// errors stay on the form; a closed form means it went through
		if msg.err == nil {
			v.notice = "Project saved"
		}
		v.clampCursor()
		return v, nil

	case projectDeletedMsg:
		if msg.err == nil {
			v.notice = "Project deleted"
		}
		v.clampCursor()
		return v, nil

	case tea.KeyMsg:
		// Handle help popup first - any key closes it
		if v.showHelpPopup {
			v.showHelpPopup = false
			return v, nil
		}
		if v.confirmingDelete {
			return v.updateConfirmDelete(msg)
		}
		if v.form.IsOpen() {
			return v.updateForm(msg)
		}
		if v.searching {
			return v.updateSearch(msg)
		}
		return v.updateNormal(msg)
	}

	return v, nil
}

func (v *ProjectListView) updateNormal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	v.notice = ""
	v.manager.ClearErr()

	switch {
	case key.Matches(msg, v.keys.Quit):
		return v, tea.Quit
	case key.Matches(msg, v.keys.Back):
		if v.manager.Query() != "" {
			v.search.Reset()
			v.manager.SetQuery("")
			v.clampCursor()
		}
		return v, nil
	case key.Matches(msg, v.keys.Up):
		if v.cursor > 0 {
			v.cursor--
		}
		return v, nil
	case key.Matches(msg, v.keys.Down):
		if v.cursor < len(v.manager.Visible())-1 {
			v.cursor++
		}
		return v, nil
	case key.Matches(msg, v.keys.Enter):
		if p, ok := v.selected(); ok {
			return v, func() tea.Msg { return SelectedProject{Project: p} }
		}
		return v, nil
	case key.Matches(msg, v.keys.New):
		v.form.OpenCreate()
		return v, v.fields.reset()
	case key.Matches(msg, v.keys.Edit):
		if p, ok := v.selected(); ok {
			v.form.OpenEdit(p)
			return v, v.fields.reset(p.Name, p.Description)
		}
		return v, nil
	case key.Matches(msg, v.keys.Delete):
		if p, ok := v.selected(); ok {
			v.confirmingDelete = true
			v.deleteTarget = p
		}
		return v, nil
	case key.Matches(msg, v.keys.Search):
		v.searching = true
		return v, v.search.Focus()
	case key.Matches(msg, v.keys.Refresh):
		return v, v.load
	case key.Matches(msg, v.keys.Help):
		v.showHelpPopup = true
		return v, nil
	}
	return v, nil
}

func (v *ProjectListView) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, v.keys.Back), key.Matches(msg, v.keys.Enter):
		v.searching = false
		v.search.Blur()
		return v, nil
	}

	var cmd tea.Cmd
	v.search, cmd = v.search.Update(msg)
	v.manager.SetQuery(v.search.Value())
	v.cursor = 0
	return v, cmd
}

func (v *ProjectListView) updateConfirmDelete(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		v.confirmingDelete = false
		id := v.deleteTarget.ID
		return v, func() tea.Msg {
			return projectDeletedMsg{err: v.manager.Delete(context.Background(), id)}
		}
	case "n", "N", "esc":
		v.confirmingDelete = false
		return v, nil
	}
	return v, nil
}

func (v *ProjectListView) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, v.keys.Back):
		v.form.Escape()
		return v, nil
	case v.form.Submitting():
		return v, nil
	case key.Matches(msg, v.keys.Save):
		return v, v.submit()
	case msg.String() == "shift+tab":
		return v, v.fields.move(-1)
	case key.Matches(msg, v.keys.Tab):
		return v, v.fields.move(1)
	case key.Matches(msg, v.keys.Enter):
		if v.fields.onButton() {
			return v, v.submit()
		}
		if !v.fields.onMultiline() {
			return v, v.fields.move(1)
		}
	}
	return v, v.fields.update(msg)
}

func (v *ProjectListView) submit() tea.Cmd {
	vals := v.fields.values()
	v.form.SetValues(forms.ProjectValues{Name: vals[0], Description: vals[1]})
	form := v.form
	return func() tea.Msg {
		return projectFormDoneMsg{err: form.Submit(context.Background())}
	}
}

// View renders the view
func (v *ProjectListView) View() string {
	if v.showHelpPopup {
		return v.renderHelpPopup()
	}
	if v.confirmingDelete {
		return v.renderDeleteConfirm()
	}
	if v.form.IsOpen() {
		return v.renderForm()
	}

	if !v.session.Authenticated() {
		return v.renderCentered(lipgloss.JoinVertical(lipgloss.Center,
			v.styles.Title.Render("Not signed in"),
			"",
			v.styles.TitleMuted.Render("Set user_id in the config file or SMARTPM_USER_ID"),
		))
	}

	all := v.manager.Projects()
	if v.manager.Loading() && len(all) == 0 {
		return v.renderCentered(v.spinner.View() + " Loading projects...")
	}
	if len(all) == 0 {
		return v.renderEmpty()
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		v.styles.Title.Render("Projects"),
		v.renderSearch(),
		v.renderList(),
		v.renderStatus(),
		v.renderHelp(),
	)
	return styles.CenterView(content, v.width, v.height)
}

func (v *ProjectListView) renderSearch() string {
	if !v.searching && v.manager.Query() == "" {
		return ""
	}
	width := clamp(styles.ContentWidth(v.width)-4, 20, 60)
	return v.styles.SearchBar.Width(width).Render(v.search.View())
}

func (v *ProjectListView) renderList() string {
	visible := v.manager.Visible()
	if len(visible) == 0 {
		return v.styles.TitleMuted.Render(fmt.Sprintf("No projects match %q", v.manager.Query()))
	}

	width := max(styles.ContentWidth(v.width)-4, 20)
	var rows []string
	for i, p := range visible {
		title, desc := v.styles.ListItem, v.styles.ListItem.Foreground(styles.Current.ForegroundDim)
		if i == v.cursor {
			title = v.styles.ListSelected
			desc = v.styles.ListSelected.Foreground(styles.Current.ForegroundDim)
		}
		rows = append(rows, title.Width(width).Render(p.Name))
		rows = append(rows, desc.Width(width).Render(firstLine(p.Description)), "")
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (v *ProjectListView) renderStatus() string {
	if err := v.manager.Err(); err != nil {
		return v.styles.Error.Render(err.Error())
	}
	if v.manager.Loading() {
		return v.styles.StatusBar.Render(v.spinner.View() + " refreshing")
	}
	if v.notice != "" {
		return v.styles.Success.Render(v.notice)
	}
	return ""
}

func (v *ProjectListView) renderEmpty() string {
	s := v.styles
	content := lipgloss.JoinVertical(lipgloss.Center,
		s.Title.Render("No Projects"),
		"",
		s.TitleMuted.Render("Press 'n' to create your first project"),
		"",
		s.ButtonPrimary.Render(" New Project "),
		"",
		v.renderStatus(),
	)
	return v.renderCentered(content)
}

func (v *ProjectListView) renderForm() string {
	s := v.styles
	heading, button := "New Project", "Create"
	if v.form.Mode() == forms.Edit {
		heading, button = "Edit Project", "Save"
	}

	inputWidth := clamp(styles.ContentWidth(v.width)-6, 20, 50)
	rows := []string{
		s.Title.Render(heading),
		"",
		v.fields.render(s, inputWidth, button),
		"",
	}
	switch {
	case v.form.Submitting():
		rows = append(rows, v.spinner.View()+" Saving...")
	case v.form.Err() != nil:
		rows = append(rows, s.Error.Render(v.form.Err().Error()))
	}
	rows = append(rows, s.TitleMuted.Render("Tab: next • Ctrl+S: save • Esc: cancel"))

	return v.renderCentered(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (v *ProjectListView) renderHelp() string {
	contentWidth := styles.ContentWidth(v.width)
	// At narrow widths, show hint to press ? for help
	if contentWidth > 0 && contentWidth < 50 {
		return v.styles.Help.Render(v.styles.HelpKey.Render("?") + " help")
	}
	return v.styles.Help.Render(
		fmt.Sprintf("%s open • %s new • %s edit • %s del • %s search • %s quit",
			v.styles.HelpKey.Render("↵"),
			v.styles.HelpKey.Render("n"),
			v.styles.HelpKey.Render("e"),
			v.styles.HelpKey.Render("d"),
			v.styles.HelpKey.Render("/"),
			v.styles.HelpKey.Render("q"),
		),
	)
}

func (v *ProjectListView) renderHelpPopup() string {
	s := v.styles
	helpItems := []string{
		s.HelpKey.Render("↵") + "      open board",
		s.HelpKey.Render("n") + "      new project",
		s.HelpKey.Render("e") + "      edit project",
		s.HelpKey.Render("d") + "      delete project",
		s.HelpKey.Render("/") + "      search",
		s.HelpKey.Render("r") + "      refresh",
		s.HelpKey.Render("q") + "      quit",
		"",
		s.TitleMuted.Render("Press any key to close"),
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{s.Title.Render("Keyboard Shortcuts"), ""}, helpItems...)...,
	)
	return v.renderCentered(s.Dialog.Render(content))
}

func (v *ProjectListView) renderDeleteConfirm() string {
	s := v.styles
	content := lipgloss.JoinVertical(lipgloss.Center,
		s.Title.Foreground(styles.Current.Error).Render("Delete Project?"),
		"",
		s.TitleMuted.Render(fmt.Sprintf("%q and all of its tasks will be deleted.", v.deleteTarget.Name)),
		"",
		lipgloss.JoinHorizontal(lipgloss.Center,
			s.ButtonPrimary.Render(" Y - Yes "),
			"  ",
			s.Button.Render(" N - No "),
		),
	)
	return v.renderCentered(content)
}

func (v *ProjectListView) renderCentered(content string) string {
	centered := lipgloss.Place(styles.ContentWidth(v.width), v.height,
		lipgloss.Center, lipgloss.Center,
		content,
	)
	return styles.CenterView(centered, v.width, v.height)
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
