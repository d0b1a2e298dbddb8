package views

import (
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/tgienger/smartpm/internal/models"
	"github.com/tgienger/smartpm/internal/ui/styles"
)

// Cache Glamour renderers by width to avoid expensive re-creation
var rendererCache sync.Map // map[int]*glamour.TermRenderer

func getRenderer(width int) (*glamour.TermRenderer, error) {
	if cached, ok := rendererCache.Load(width); ok {
		return cached.(*glamour.TermRenderer), nil
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, err
	}

	rendererCache.Store(width, renderer)
	return renderer, nil
}

// pointsLabel shows the estimate or N/A while enrichment is pending
func pointsLabel(t models.Task) string {
	if t.StoryPoints == nil {
		return "N/A"
	}
	return fmt.Sprint(*t.StoryPoints)
}

// taskMarkdown is the detail page of a task
func taskMarkdown(t models.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", t.Title)
	fmt.Fprintf(&b, "**Status:** %s  \n**Story points:** %s\n\n", t.Status.Label(), pointsLabel(t))

	b.WriteString("## Description\n\n")
	if d := strings.TrimSpace(t.UserDescription); d != "" {
		b.WriteString(d)
	} else {
		b.WriteString("_No description_")
	}
	b.WriteString("\n\n## AI description\n\n")
	if ai := strings.TrimSpace(t.AIText()); ai != "" {
		b.WriteString(ai)
	} else {
		b.WriteString("_Not generated yet_")
	}
	b.WriteString("\n")
	return b.String()
}

// renderTaskDetail renders the detail page, falling back to the raw markdown
// when glamour fails
func renderTaskDetail(t models.Task, width int) string {
	md := taskMarkdown(t)
	renderer, err := getRenderer(width)
	if err == nil {
		if out, err := renderer.Render(md); err == nil {
			return strings.TrimSpace(out)
		}
	}
	return lipgloss.NewStyle().Foreground(styles.Current.Foreground).Width(width).Render(md)
}
