package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/MahdiBaghbani/marrfa-go/internal/appctx"
	"github.com/MahdiBaghbani/marrfa-go/internal/components/identity"
	"github.com/MahdiBaghbani/marrfa-go/internal/platform/config"
	"github.com/MahdiBaghbani/marrfa-go/internal/platform/logutil"
	"github.com/MahdiBaghbani/marrfa-go/internal/platform/store"
	"github.com/MahdiBaghbani/marrfa-go/internal/session"

	// Register store drivers
	_ "github.com/MahdiBaghbani/marrfa-go/internal/platform/store/loader"
)

// app carries flag values and the per-invocation session.
type app struct {
	out    io.Writer
	errOut io.Writer

	configPath  string
	mode        string
	envFile     string
	apiURL      string
	email       string
	logLevel    string
	storeDriver string
	dataDir     string
	sensitive   string

	cfg     *config.Config
	logger  *slog.Logger
	kv      store.KV
	session *session.Session
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	a := &app{out: out, errOut: errOut}

	root := &cobra.Command{
		Use:   "marrfa-go",
		Short: "Client for the Marrfa real-estate backend",
		Long: `marrfa-go talks to the Marrfa backend on behalf of one user: it obtains and
caches bearer tokens, manages saved properties, submits leads and browses the catalog.

Environment Variables:
  MARRFA_EMAIL          Identity used when --email is not given
  MARRFA_API_BASE_URL   Backend base URL
  MARRFA_STORE_DRIVER   Token store driver: sqlite, json, redis, memory`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.open,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&a.configPath, "config", "", "Path to TOML config file (optional)")
	f.StringVar(&a.mode, "mode", "", "Operating mode: prod or dev (overrides config)")
	f.StringVar(&a.envFile, "env-file", ".env", "Dotenv file with MARRFA_* variables (ignored when missing)")
	f.StringVar(&a.apiURL, "api-url", "", "Backend base URL (overrides config)")
	f.StringVar(&a.email, "email", "", "User email (defaults to MARRFA_EMAIL)")
	f.StringVar(&a.logLevel, "logging-level", "", "Log level: trace, debug, info, warn, error (overrides config)")
	f.StringVar(&a.storeDriver, "store-driver", "", "Token store driver: sqlite, json, redis, memory (overrides config)")
	f.StringVar(&a.dataDir, "data-dir", "", "Directory for file-backed stores (overrides config)")
	f.StringVar(&a.sensitive, "logging-allow-sensitive", "", "Log full tokens: true or false (overrides config)")

	root.AddCommand(
		newTokenCmd(a),
		newFavoritesCmd(a),
		newLeadsCmd(a),
		newCatalogCmd(a),
	)
	return root
}

// open loads config and builds the session for the command about to run.
func (a *app) open(cmd *cobra.Command, args []string) error {
	bootstrapLogger := slog.New(slog.NewJSONHandler(a.errOut, &slog.HandlerOptions{Level: slog.LevelWarn}))

	flags := cmd.Flags()
	override := func(name string, v *string) *string {
		if flags.Changed(name) {
			return v
		}
		return nil
	}

	cfg, err := config.Load(config.LoaderOptions{
		ConfigPath: a.configPath,
		EnvFile:    a.envFile,
		ModeFlag:   a.mode,
		FlagOverrides: config.FlagOverrides{
			APIBaseURL:            override("api-url", &a.apiURL),
			StoreDriver:           override("store-driver", &a.storeDriver),
			StoreDataDir:          override("data-dir", &a.dataDir),
			LoggingLevel:          override("logging-level", &a.logLevel),
			LoggingAllowSensitive: override("logging-allow-sensitive", &a.sensitive),
		},
		Logger: bootstrapLogger,
	})
	if err != nil {
		return err
	}
	a.cfg = cfg

	a.logger = slog.New(slog.NewJSONHandler(a.errOut, &slog.HandlerOptions{
		Level: logutil.ParseLevel(cfg.Logging.Level),
	}))
	a.logger.Debug("effective configuration", "config", cfg.Redacted())

	kv, err := store.Open(cmd.Context(), &store.DriverConfig{
		Driver:  cfg.Store.Driver,
		DataDir: cfg.Store.DataDir,
		Options: cfg.Store.DriverOptions(cfg.Store.Driver),
		Logger:  a.logger,
	})
	if err != nil {
		return err
	}
	a.kv = kv

	a.session, err = session.New(session.Deps{
		Config: cfg,
		KV:     kv,
		Logger: a.logger,
	})
	if err != nil {
		_ = kv.Close()
		return err
	}

	cmd.SetContext(appctx.WithLogger(cmd.Context(), a.logger))
	return nil
}

func (a *app) close() error {
	if a.kv == nil {
		return nil
	}
	err := a.kv.Close()
	a.kv = nil
	return err
}

// identity resolves the user email from --email or MARRFA_EMAIL.
func (a *app) identity(op string) (string, error) {
	email := a.email
	if email == "" {
		email = os.Getenv("MARRFA_EMAIL")
	}
	return identity.Require(op, email)
}

// signIn starts the session for the resolved identity, loading favorites.
func (a *app) signIn(ctx context.Context, op string) error {
	id, err := a.identity(op)
	if err != nil {
		return err
	}
	return a.session.SignIn(ctx, id)
}

// printJSON writes raw indented, or as-is when it is not JSON.
func (a *app) printJSON(raw []byte) error {
	if len(raw) == 0 {
		_, err := fmt.Fprintln(a.out, "null")
		return err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		_, err = fmt.Fprintln(a.out, string(raw))
		return err
	}
	_, err := fmt.Fprintln(a.out, buf.String())
	return err
}

func (a *app) printValue(v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return a.printJSON(raw)
}
