package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/tgienger/smartpm/internal/board"
	"github.com/tgienger/smartpm/internal/handbook"
	"github.com/tgienger/smartpm/internal/models"
	"github.com/tgienger/smartpm/internal/projects"
)

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	return t
}

func statusText(s models.Status) string {
	switch s {
	case models.StatusInProgress:
		return text.FgHiYellow.Sprint(s.Label())
	case models.StatusInReview:
		return text.FgHiMagenta.Sprint(s.Label())
	case models.StatusDone:
		return text.FgHiGreen.Sprint(s.Label())
	default:
		return text.FgHiCyan.Sprint(s.Label())
	}
}

func projectsCmd() *cobra.Command {
	var asJSON bool
	var query string

	cmd := &cobra.Command{
		Use:   "projects",
		Short: "List your projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup()
			if err != nil {
				return err
			}
			defer e.Close()

			m := projects.New(e.store, e.api, e.session, e.logger)
			if _, err := e.session.RequireUser(); err != nil {
				return err
			}
			if err := m.Load(cmd.Context()); err != nil {
				return err
			}
			m.SetQuery(query)
			list := m.Visible()

			if asJSON {
				return printJSON(list)
			}
			if len(list) == 0 {
				fmt.Println("No projects.")
				return nil
			}

			t := newTable()
			t.AppendHeader(table.Row{"ID", "Name", "Description"})
			for _, p := range list {
				t.AppendRow(table.Row{p.ID, p.Name, firstLine(p.Description)})
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().BoolVarP(&asJSON, "json", "j", false, "Output as JSON")
	cmd.Flags().StringVarP(&query, "search", "s", "", "Fuzzy filter on the project name")
	return cmd
}

func openBoard(ctx context.Context, e *env, projectID string) (*board.Board, error) {
	b := board.New(projectID, e.store, e.api, e.session, board.WithLogger(e.logger))
	if err := b.Open(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

func tasksCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "tasks <project-id>",
		Short: "Show the board of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup()
			if err != nil {
				return err
			}
			defer e.Close()

			b, err := openBoard(cmd.Context(), e, args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(b.Columns())
			}

			fmt.Println(text.Bold.Sprint(b.Project().Name))
			t := newTable()
			t.AppendHeader(table.Row{"Status", "ID", "Title", "Points"})
			cols := b.Columns()
			for _, s := range models.Statuses {
				for _, task := range cols[s] {
					points := "N/A"
					if task.StoryPoints != nil {
						points = fmt.Sprint(*task.StoryPoints)
					}
					t.AppendRow(table.Row{statusText(s), task.ID, task.Title, points})
				}
				t.AppendSeparator()
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().BoolVarP(&asJSON, "json", "j", false, "Output as JSON")
	return cmd
}

func moveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "move <project-id> <task-id> <status>",
		Short: "Move a task to another column",
		Long: `Move a task to another column.

Status is one of: todo, in_progress, in_review, done.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			status := models.Status(args[2])
			if !status.Valid() {
				return fmt.Errorf("invalid status %q (want one of %s)", args[2], statusNames())
			}

			e, err := setup()
			if err != nil {
				return err
			}
			defer e.Close()

			b, err := openBoard(cmd.Context(), e, args[0])
			if err != nil {
				return err
			}
			if err := b.MoveTask(cmd.Context(), args[1], status); err != nil {
				return err
			}
			task, _ := b.Task(args[1])
			fmt.Printf("Moved %q to %s\n", task.Title, status.Label())
			return nil
		},
	}
}

func statusNames() string {
	names := make([]string, len(models.Statuses))
	for i, s := range models.Statuses {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}

func handbookCmd() *cobra.Command {
	var outDir string
	var model string

	cmd := &cobra.Command{
		Use:   "handbook <project-id>",
		Short: "Download the project handbook as a PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup()
			if err != nil {
				return err
			}
			defer e.Close()

			project, err := e.store.GetProject(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			dir := outDir
			if dir == "" {
				dir = e.cfg.DownloadDir
			}
			selector := e.cfg.Model
			if model != "" {
				selector = models.ModelSelector(model)
			}

			path, err := handbook.Export(cmd.Context(), e.api, e.session, *project, selector, dir)
			if err != nil {
				return err
			}
			fmt.Println("Saved", path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "output", "o", "", "Directory to save the PDF in (default: download_dir)")
	cmd.Flags().StringVarP(&model, "model", "m", "", "AI model to write the handbook (openai or gemini)")
	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configuration and check the backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup()
			if err != nil {
				return err
			}
			defer e.Close()

			user, signedIn := e.session.Identity()
			signedInText := text.FgHiRed.Sprint("no")
			if signedIn {
				signedInText = text.FgHiGreen.Sprint("yes (" + user + ")")
			}

			apiText := text.FgHiGreen.Sprint("ok")
			if ok, err := e.api.Health(cmd.Context()); err != nil {
				apiText = text.FgHiRed.Sprint(err.Error())
			} else if !ok {
				apiText = text.FgHiYellow.Sprint("not ready")
			}

			storeText := text.FgHiGreen.Sprint("ok")
			if signedIn {
				if _, err := e.store.ListProjects(cmd.Context(), user); err != nil {
					storeText = text.FgHiRed.Sprint(err.Error())
				}
			}

			t := newTable()
			t.AppendRows([]table.Row{
				{"Config", e.cfg.Path()},
				{"Signed in", signedInText},
				{"Index API", e.cfg.APIURL + "  " + apiText},
				{"Store", e.cfg.Store.Kind + "  " + storeText},
				{"Model", string(e.cfg.Model)},
				{"Downloads", e.cfg.DownloadDir},
			})
			t.Render()
			return nil
		},
	}
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
