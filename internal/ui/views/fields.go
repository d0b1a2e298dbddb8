package views

import (
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tgienger/smartpm/internal/ui/styles"
)

// clamp returns val clamped between minVal and maxVal
func clamp(val, minVal, maxVal int) int {
	if val < minVal {
		return minVal
	}
	if val > maxVal {
		return maxVal
	}
	return val
}

// field is one labelled input of a dialog, either single or multi line
type field struct {
	label string
	line  *textinput.Model
	area  *textarea.Model
}

func newLineField(label, placeholder string, limit int) *field {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.CharLimit = limit
	return &field{label: label, line: &ti}
}

func newAreaField(label, placeholder string, limit, height int) *field {
	ta := textarea.New()
	ta.Placeholder = placeholder
	ta.CharLimit = limit
	ta.SetWidth(50)
	ta.SetHeight(height)
	ta.ShowLineNumbers = false
	return &field{label: label, area: &ta}
}

func (f *field) Value() string {
	if f.line != nil {
		return f.line.Value()
	}
	return f.area.Value()
}

func (f *field) SetValue(s string) {
	if f.line != nil {
		f.line.SetValue(s)
		return
	}
	f.area.SetValue(s)
}

func (f *field) focus() tea.Cmd {
	if f.line != nil {
		return f.line.Focus()
	}
	return f.area.Focus()
}

func (f *field) blur() {
	if f.line != nil {
		f.line.Blur()
		return
	}
	f.area.Blur()
}

func (f *field) update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	if f.line != nil {
		*f.line, cmd = f.line.Update(msg)
		return cmd
	}
	*f.area, cmd = f.area.Update(msg)
	return cmd
}

func (f *field) multiline() bool {
	return f.area != nil
}

// fieldSet is the input column of a dialog followed by a submit button. The
// focus index equal to len(fields) is the button.
type fieldSet struct {
	fields []*field
	focus  int
}

func newFieldSet(fields ...*field) *fieldSet {
	return &fieldSet{fields: fields}
}

// reset focuses the first field and fills the fields with values
func (s *fieldSet) reset(values ...string) tea.Cmd {
	for i, f := range s.fields {
		v := ""
		if i < len(values) {
			v = values[i]
		}
		f.SetValue(v)
	}
	s.focus = 0
	return s.applyFocus()
}

func (s *fieldSet) values() []string {
	out := make([]string, len(s.fields))
	for i, f := range s.fields {
		out[i] = f.Value()
	}
	return out
}

func (s *fieldSet) onButton() bool {
	return s.focus == len(s.fields)
}

func (s *fieldSet) onMultiline() bool {
	return !s.onButton() && s.fields[s.focus].multiline()
}

func (s *fieldSet) move(dir int) tea.Cmd {
	n := len(s.fields) + 1
	s.focus = (s.focus + dir + n) % n
	return s.applyFocus()
}

func (s *fieldSet) applyFocus() tea.Cmd {
	var cmd tea.Cmd
	for i, f := range s.fields {
		if i == s.focus {
			cmd = f.focus()
			continue
		}
		f.blur()
	}
	return cmd
}

func (s *fieldSet) update(msg tea.Msg) tea.Cmd {
	if s.onButton() {
		return nil
	}
	return s.fields[s.focus].update(msg)
}

func (s *fieldSet) setWidth(width int) {
	for _, f := range s.fields {
		if f.area != nil {
			f.area.SetWidth(width)
		}
	}
}

// render draws the labelled inputs and the button
func (s *fieldSet) render(st *styles.Styles, width int, button string) string {
	var rows []string
	for i, f := range s.fields {
		style := st.Input
		if i == s.focus {
			style = st.InputFocused
		}
		rows = append(rows, f.label+":", style.Width(width).Render(fieldView(f)), "")
	}
	btn := st.Button
	if s.onButton() {
		btn = st.ButtonFocused
	}
	rows = append(rows, btn.Render(" "+button+" "))
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func fieldView(f *field) string {
	if f.line != nil {
		return f.line.View()
	}
	return f.area.View()
}
