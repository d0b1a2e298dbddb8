package views

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tgienger/smartpm/internal/board"
	"github.com/tgienger/smartpm/internal/dragdrop"
	"github.com/tgienger/smartpm/internal/forms"
	"github.com/tgienger/smartpm/internal/handbook"
	"github.com/tgienger/smartpm/internal/models"
	"github.com/tgienger/smartpm/internal/session"
	"github.com/tgienger/smartpm/internal/store"
	"github.com/tgienger/smartpm/internal/ui/keys"
	"github.com/tgienger/smartpm/internal/ui/styles"
)

// Board messages carry the project they were issued for. A board view drops
// messages of any other project, so results of a board that was left behind
// never reach the one shown now.
type boardOpenedMsg struct {
	projectID string
	err       error
}

type boardLoadedMsg struct {
	projectID string
	err       error
}

type moveSettledMsg struct {
	projectID string
	err       error
}

type taskFormDoneMsg struct {
	projectID string
	err       error
}

type taskDeletedMsg struct {
	projectID string
	err       error
}

type handbookExportedMsg struct {
	projectID string
	path      string
	err       error
}

// BackToProjects signals to go back to project list
type BackToProjects struct{}

// BoardSettings are the per-user choices the board needs
type BoardSettings struct {
	Model       models.ModelSelector
	DownloadDir string
}

// BoardView shows the four status columns of one project. Tasks are carried
// between columns with the keyboard: space picks a task up, left and right
// carry it, space drops it and esc puts it back.
type BoardView struct {
	board    *board.Board
	drag     *dragdrop.Controller
	form     *forms.TaskForm
	renderer handbook.Renderer
	session  *session.Session
	settings BoardSettings

	createFields *fieldSet // title, description
	editFields   *fieldSet // title, description, ai description, story points

	styles  *styles.Styles
	keys    keys.KeyMap
	spinner spinner.Model

	width  int
	height int

	col  int
	rows [4]int

	viewing    bool
	viewTaskID string

	confirmingDelete bool
	deleteTarget     models.Task

	exporting bool
	notice    string

	// Help popup (shown with ? at narrow widths)
	showHelpPopup bool
}

// NewBoardView creates the view for b. renderer produces handbook PDFs.
func NewBoardView(b *board.Board, renderer handbook.Renderer, sess *session.Session, settings BoardSettings) *BoardView {
	if settings.Model == "" {
		settings.Model = models.DefaultModel
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(styles.Current.Primary)

	return &BoardView{
		board:    b,
		drag:     dragdrop.New(b),
		form:     forms.NewTaskForm(b),
		renderer: renderer,
		session:  sess,
		settings: settings,
		createFields: newFieldSet(
			newLineField("Title", "Task title", 200),
			newAreaField("Description", "What needs to be done", 2000, 4),
		),
		editFields: newFieldSet(
			newLineField("Title", "Task title", 200),
			newAreaField("Description", "What needs to be done", 2000, 3),
			newAreaField("AI description", "Generated description", 4000, 4),
			newLineField("Story points", "e.g. 3", 4),
		),
		styles:  styles.NewStyles(),
		keys:    keys.DefaultKeyMap(),
		spinner: sp,
	}
}

// Init opens the board
func (v *BoardView) Init() tea.Cmd {
	b := v.board
	return tea.Batch(
		func() tea.Msg {
			return boardOpenedMsg{projectID: b.ProjectID(), err: b.Open(context.Background())}
		},
		v.spinner.Tick,
	)
}

func (v *BoardView) reload() tea.Msg {
	return boardLoadedMsg{projectID: v.board.ProjectID(), err: v.board.Load(context.Background())}
}

// foreign reports whether msg belongs to a board of another project
func (v *BoardView) foreign(msg tea.Msg) bool {
	var id string
	switch msg := msg.(type) {
	case boardOpenedMsg:
		id = msg.projectID
	case boardLoadedMsg:
		id = msg.projectID
	case moveSettledMsg:
		id = msg.projectID
	case taskFormDoneMsg:
		id = msg.projectID
	case taskDeletedMsg:
		id = msg.projectID
	case handbookExportedMsg:
		id = msg.projectID
	default:
		return false
	}
	return id != v.board.ProjectID()
}

func (v *BoardView) status() models.Status {
	return models.Statuses[v.col]
}

func (v *BoardView) selected() (models.Task, bool) {
	tasks := v.board.Columns()[v.status()]
	row := v.rows[v.col]
	if row < 0 || row >= len(tasks) {
		return models.Task{}, false
	}
	return tasks[row], true
}

func (v *BoardView) clampRows() {
	cols := v.board.Columns()
	for i, s := range models.Statuses {
		v.rows[i] = clamp(v.rows[i], 0, max(0, len(cols[s])-1))
	}
}

// focusTask moves the cursor onto taskID wherever it now sits
func (v *BoardView) focusTask(taskID string) {
	cols := v.board.Columns()
	for i, s := range models.Statuses {
		for j, t := range cols[s] {
			if t.ID == taskID {
				v.col = i
				v.rows[i] = j
				return
			}
		}
	}
}

func (v *BoardView) fields() *fieldSet {
	if v.form.Mode() == forms.Edit {
		return v.editFields
	}
	return v.createFields
}

// Update handles messages
func (v *BoardView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if v.foreign(msg) {
		return v, nil
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		w := clamp(styles.ContentWidth(v.width)-10, 20, 60)
		v.createFields.setWidth(w)
		v.editFields.setWidth(w)
		return v, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		v.spinner, cmd = v.spinner.Update(msg)
		return v, cmd

	case boardOpenedMsg:
		if errors.Is(msg.err, store.ErrProjectNotFound) {
			return v, func() tea.Msg { return BackToProjects{} }
		}
		v.clampRows()
		return v, nil

	case boardLoadedMsg, moveSettledMsg, taskDeletedMsg:
		v.clampRows()
		return v, nil

	case taskFormDoneMsg:
		if msg.err == nil {
			v.notice = "Task saved"
		}
		v.clampRows()
		return v, nil

	case handbookExportedMsg:
		v.exporting = false
		if msg.err != nil {
			v.notice = "Handbook export failed: " + msg.err.Error()
		} else {
			v.notice = "Handbook saved to " + msg.path
		}
		return v, nil

	case tea.KeyMsg:
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
		if v.viewing {
			return v.updateViewing(msg)
		}
		if v.drag.State() == dragdrop.Dragging {
			return v.updateDragging(msg)
		}
		return v.updateNormal(msg)
	}

	return v, nil
}

func (v *BoardView) updateNormal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	v.notice = ""
	v.board.ClearErr()

	switch {
	case key.Matches(msg, v.keys.Quit):
		return v, tea.Quit
	case key.Matches(msg, v.keys.Back):
		return v, func() tea.Msg { return BackToProjects{} }
	case key.Matches(msg, v.keys.Left):
		if v.col > 0 {
			v.col--
		}
	case key.Matches(msg, v.keys.Right):
		if v.col < len(models.Statuses)-1 {
			v.col++
		}
	case key.Matches(msg, v.keys.Up):
		if v.rows[v.col] > 0 {
			v.rows[v.col]--
		}
	case key.Matches(msg, v.keys.Down):
		if v.rows[v.col] < len(v.board.Columns()[v.status()])-1 {
			v.rows[v.col]++
		}
	case key.Matches(msg, v.keys.Grab):
		if t, ok := v.selected(); ok {
			v.drag.Begin(t)
		}
	case key.Matches(msg, v.keys.Enter):
		if t, ok := v.selected(); ok {
			v.viewing = true
			v.viewTaskID = t.ID
		}
	case key.Matches(msg, v.keys.New):
		v.form.OpenCreate(v.status(), v.settings.Model)
		return v, v.createFields.reset()
	case key.Matches(msg, v.keys.Edit):
		if t, ok := v.selected(); ok {
			return v, v.openEdit(t)
		}
	case key.Matches(msg, v.keys.Delete):
		if t, ok := v.selected(); ok {
			v.confirmingDelete = true
			v.deleteTarget = t
		}
	case key.Matches(msg, v.keys.Export):
		return v, v.export()
	case key.Matches(msg, v.keys.Model):
		if v.settings.Model == models.ModelOpenAI {
			v.settings.Model = models.ModelGemini
		} else {
			v.settings.Model = models.ModelOpenAI
		}
	case key.Matches(msg, v.keys.Refresh):
		return v, v.reload
	case key.Matches(msg, v.keys.Help):
		v.showHelpPopup = true
	}
	return v, nil
}

func (v *BoardView) updateDragging(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, v.keys.Back):
		v.drag.Cancel()
	case key.Matches(msg, v.keys.Left):
		if v.col > 0 {
			v.col--
		}
		v.drag.Hover(v.status())
	case key.Matches(msg, v.keys.Right):
		if v.col < len(models.Statuses)-1 {
			v.col++
		}
		v.drag.Hover(v.status())
	case key.Matches(msg, v.keys.Grab), key.Matches(msg, v.keys.Enter):
		move, err := v.drag.Drop(v.status())
		if err != nil {
			v.notice = err.Error()
			return v, nil
		}
		v.focusTask(move.TaskID)
		id := v.board.ProjectID()
		return v, func() tea.Msg {
			return moveSettledMsg{projectID: id, err: move.Persist(context.Background())}
		}
	case key.Matches(msg, v.keys.Quit):
		return v, tea.Quit
	}
	return v, nil
}

func (v *BoardView) updateViewing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	t, ok := v.board.Task(v.viewTaskID)
	if !ok {
		v.viewing = false
		return v, nil
	}

	switch {
	case key.Matches(msg, v.keys.Back), key.Matches(msg, v.keys.Enter):
		v.viewing = false
	case key.Matches(msg, v.keys.Edit):
		v.viewing = false
		return v, v.openEdit(t)
	case key.Matches(msg, v.keys.Delete):
		v.viewing = false
		v.confirmingDelete = true
		v.deleteTarget = t
	case key.Matches(msg, v.keys.Quit):
		return v, tea.Quit
	}
	return v, nil
}

func (v *BoardView) updateConfirmDelete(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		v.confirmingDelete = false
		id := v.deleteTarget.ID
		b := v.board
		return v, func() tea.Msg {
			return taskDeletedMsg{projectID: b.ProjectID(), err: b.DeleteTask(context.Background(), id)}
		}
	case "n", "N", "esc":
		v.confirmingDelete = false
	}
	return v, nil
}

func (v *BoardView) openEdit(t models.Task) tea.Cmd {
	v.form.OpenEdit(t)
	points := ""
	if t.StoryPoints != nil {
		points = fmt.Sprint(*t.StoryPoints)
	}
	return v.editFields.reset(t.Title, t.UserDescription, t.AIText(), points)
}

func (v *BoardView) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	fs := v.fields()
	switch {
	case key.Matches(msg, v.keys.Back):
		v.form.Escape()
		return v, nil
	case v.form.Submitting():
		return v, nil
	case key.Matches(msg, v.keys.Save):
		return v, v.submit()
	case msg.String() == "shift+tab":
		return v, fs.move(-1)
	case key.Matches(msg, v.keys.Tab):
		return v, fs.move(1)
	case key.Matches(msg, v.keys.Enter):
		if fs.onButton() {
			return v, v.submit()
		}
		if !fs.onMultiline() {
			return v, fs.move(1)
		}
	}
	return v, fs.update(msg)
}

func (v *BoardView) submit() tea.Cmd {
	vals := v.fields().values()
	tv := forms.TaskValues{Title: vals[0], UserDescription: vals[1]}
	if v.form.Mode() == forms.Edit {
		tv.AIDescription = vals[2]
		tv.StoryPoints = vals[3]
	}
	v.form.SetValues(tv)

	form, id := v.form, v.board.ProjectID()
	return func() tea.Msg {
		return taskFormDoneMsg{projectID: id, err: form.Submit(context.Background())}
	}
}

func (v *BoardView) export() tea.Cmd {
	if v.exporting {
		return nil
	}
	project := v.board.Project()
	if project == nil {
		v.notice = "Project is still loading"
		return nil
	}
	v.exporting = true
	r, sess, settings := v.renderer, v.session, v.settings
	return func() tea.Msg {
		path, err := handbook.Export(context.Background(), r, sess, *project, settings.Model, settings.DownloadDir)
		return handbookExportedMsg{projectID: project.ID, path: path, err: err}
	}
}

// View renders the view
func (v *BoardView) View() string {
	if v.showHelpPopup {
		return v.renderHelpPopup()
	}
	if v.confirmingDelete {
		return v.renderDeleteConfirm()
	}
	if v.form.IsOpen() {
		return v.renderForm()
	}
	if v.viewing {
		if t, ok := v.board.Task(v.viewTaskID); ok {
			return v.renderDetail(t)
		}
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		v.renderHeader(),
		v.renderColumns(),
		v.renderStatus(),
		v.renderHelp(),
	)
}

func (v *BoardView) renderHeader() string {
	name := "Loading..."
	if p := v.board.Project(); p != nil {
		name = p.Name
	}
	return lipgloss.JoinHorizontal(lipgloss.Center,
		v.styles.Title.Padding(0, 1).Render(name),
		v.styles.TitleMuted.Render("model: "+string(v.settings.Model)),
	)
}

func (v *BoardView) renderColumns() string {
	colWidth := max((v.width-len(models.Statuses)*4)/len(models.Statuses), 14)
	visible := max(v.height-10, 3)

	dragged, dragging := v.drag.Dragged()
	cols := v.board.Columns()

	rendered := make([]string, len(models.Statuses))
	for i, s := range models.Statuses {
		tasks := cols[s]
		heading := v.styles.ColumnTitle.Foreground(styles.StatusColor(s)).
			Render(fmt.Sprintf("%s (%d)", s.Label(), len(tasks)))

		lines := []string{heading}
		if len(tasks) == 0 {
			lines = append(lines, v.styles.TitleMuted.Render("No tasks"))
		}

		start := 0
		if i == v.col && v.rows[i] >= visible {
			start = v.rows[i] - visible + 1
		}
		for j := start; j < len(tasks) && j < start+visible; j++ {
			t := tasks[j]
			style := v.styles.Card
			switch {
			case dragging && t.ID == dragged.ID:
				style = v.styles.CardDragged
			case i == v.col && j == v.rows[i]:
				style = v.styles.CardSelected
			}
			label := fmt.Sprintf("%s %s", t.Title, v.styles.Points.Render("["+pointsLabel(t)+"]"))
			lines = append(lines, style.Width(colWidth).MaxWidth(colWidth).Render(label))
		}

		colStyle := v.styles.Column
		switch {
		case dragging && i == v.col:
			colStyle = v.styles.ColumnDrop
		case i == v.col:
			colStyle = v.styles.ColumnFocused
		}
		rendered[i] = colStyle.Width(colWidth + 2).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}

func (v *BoardView) renderStatus() string {
	switch {
	case v.board.Err() != nil:
		return v.styles.Error.Render(v.board.Err().Error())
	case v.drag.State() == dragdrop.Dragging:
		t, _ := v.drag.Dragged()
		return v.styles.StatusBar.Render(fmt.Sprintf("Moving %q to %s • space: drop • esc: cancel", t.Title, v.drag.Over().Label()))
	case v.exporting:
		return v.styles.StatusBar.Render(v.spinner.View() + " Generating handbook...")
	case v.board.Loading():
		return v.styles.StatusBar.Render(v.spinner.View() + " Loading tasks...")
	case v.notice != "":
		return v.styles.Success.Render(v.notice)
	}
	return ""
}

func (v *BoardView) renderDetail(t models.Task) string {
	width := clamp(styles.ContentWidth(v.width)-4, 20, 76)
	content := lipgloss.JoinVertical(lipgloss.Left,
		renderTaskDetail(t, width),
		"",
		v.styles.TitleMuted.Render("e: edit • d: delete • esc: back"),
	)
	return styles.CenterView(content, v.width, v.height)
}

func (v *BoardView) renderForm() string {
	s := v.styles
	heading, button := "New Task in "+v.form.Status().Label(), "Create"
	if v.form.Mode() == forms.Edit {
		heading, button = "Edit Task", "Save"
	}

	inputWidth := clamp(styles.ContentWidth(v.width)-6, 20, 60)
	rows := []string{s.Title.Render(heading)}
	if v.form.Mode() == forms.Create {
		rows = append(rows, s.TitleMuted.Render("model: "+string(v.form.Model())))
	}
	rows = append(rows, "", v.fields().render(s, inputWidth, button), "")

	switch {
	case v.form.Submitting() && v.form.Mode() == forms.Create:
		rows = append(rows, v.spinner.View()+" Generating description and estimate...")
	case v.form.Submitting():
		rows = append(rows, v.spinner.View()+" Saving...")
	case v.form.Err() != nil:
		rows = append(rows, s.Error.Render(v.form.Err().Error()))
	}
	rows = append(rows, s.TitleMuted.Render("Tab: next • Ctrl+S: save • Esc: cancel"))

	return v.renderCentered(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (v *BoardView) renderHelp() string {
	contentWidth := styles.ContentWidth(v.width)
	if contentWidth > 0 && contentWidth < 50 {
		return v.styles.Help.Render(v.styles.HelpKey.Render("?") + " help")
	}
	return v.styles.Help.Render(
		fmt.Sprintf("%s move • %s view • %s new • %s edit • %s del • %s handbook • %s back",
			v.styles.HelpKey.Render("space"),
			v.styles.HelpKey.Render("↵"),
			v.styles.HelpKey.Render("n"),
			v.styles.HelpKey.Render("e"),
			v.styles.HelpKey.Render("d"),
			v.styles.HelpKey.Render("p"),
			v.styles.HelpKey.Render("esc"),
		),
	)
}

func (v *BoardView) renderHelpPopup() string {
	s := v.styles
	helpItems := []string{
		s.HelpKey.Render("←/→") + "    switch column",
		s.HelpKey.Render("↑/↓") + "    select task",
		s.HelpKey.Render("space") + "  pick up / drop task",
		s.HelpKey.Render("↵") + "      view task",
		s.HelpKey.Render("n") + "      new task in column",
		s.HelpKey.Render("e") + "      edit task",
		s.HelpKey.Render("d") + "      delete task",
		s.HelpKey.Render("p") + "      export handbook PDF",
		s.HelpKey.Render("m") + "      switch AI model",
		s.HelpKey.Render("r") + "      refresh",
		s.HelpKey.Render("esc") + "    back to projects",
		s.HelpKey.Render("q") + "      quit",
		"",
		s.TitleMuted.Render("Press any key to close"),
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{s.Title.Render("Keyboard Shortcuts"), ""}, helpItems...)...,
	)
	return v.renderCentered(s.Dialog.Render(content))
}

func (v *BoardView) renderDeleteConfirm() string {
	s := v.styles
	content := lipgloss.JoinVertical(lipgloss.Center,
		s.Title.Foreground(styles.Current.Error).Render("Delete Task?"),
		"",
		s.TitleMuted.Render(fmt.Sprintf("%q will be deleted.", v.deleteTarget.Title)),
		"",
		lipgloss.JoinHorizontal(lipgloss.Center,
			s.ButtonPrimary.Render(" Y - Yes "),
			"  ",
			s.Button.Render(" N - No "),
		),
	)
	return v.renderCentered(content)
}

func (v *BoardView) renderCentered(content string) string {
	centered := lipgloss.Place(styles.ContentWidth(v.width), v.height,
		lipgloss.Center, lipgloss.Center,
		content,
	)
	return styles.CenterView(centered, v.width, v.height)
}
