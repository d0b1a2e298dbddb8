package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/tgienger/smartpm/internal/api"
	"github.com/tgienger/smartpm/internal/config"
	"github.com/tgienger/smartpm/internal/db"
	"github.com/tgienger/smartpm/internal/logging"
	"github.com/tgienger/smartpm/internal/session"
	"github.com/tgienger/smartpm/internal/store"
	"github.com/tgienger/smartpm/internal/store/postgrest"
	"github.com/tgienger/smartpm/internal/ui"
)

// Version information set via ldflags
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	configPath string
	debug      bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "smartpm",
		Short:        "Kanban boards with AI-written task descriptions",
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
		RunE:         runTUI,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/smartpm/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "write debug logs")

	rootCmd.AddCommand(projectsCmd())
	rootCmd.AddCommand(tasksCmd())
	rootCmd.AddCommand(moveCmd())
	rootCmd.AddCommand(handbookCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(devAPICmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// env is what every client command runs on
type env struct {
	cfg     *config.Config
	session *session.Session
	store   store.TableStore
	api     *api.Client
	logger  *slog.Logger
	closers []io.Closer
}

func (e *env) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		_ = e.closers[i].Close()
	}
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFrom(configPath)
	}
	return config.Load()
}

// setup loads the config, starts file logging and opens the configured store
func setup() (*env, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	e := &env{cfg: cfg}
	if dir, err := config.DataDir(); err == nil {
		if closer, err := logging.Init(dir, debug); err == nil {
			e.closers = append(e.closers, closer)
		}
	}
	e.logger = logging.Logger

	e.session = session.New(cfg.UserID, cfg.Token)
	e.api = api.New(cfg.APIURL, cfg.RequestTimeout)

	switch cfg.Store.Kind {
	case config.StorePostgREST:
		e.store = postgrest.New(cfg.Store.URL, cfg.Store.Key, e.session, cfg.RequestTimeout)
	default:
		database, err := db.New(cfg.Store.DBPath)
		if err != nil {
			e.Close()
			return nil, fmt.Errorf("open database: %w", err)
		}
		e.store = database
		e.closers = append(e.closers, database)
	}

	e.logger.Debug("client configured",
		slog.String("api_url", cfg.APIURL),
		slog.String("store", cfg.Store.Kind),
		slog.Bool("signed_in", e.session.Authenticated()),
	)
	return e, nil
}

func runTUI(cmd *cobra.Command, args []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.Close()

	app := ui.NewApp(ui.Deps{
		Config:  e.cfg,
		Session: e.session,
		Store:   e.store,
		API:     e.api,
		Logger:  e.logger,
	})
	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running application: %w", err)
	}
	return nil
}
