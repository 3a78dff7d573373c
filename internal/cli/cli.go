// Package cli implements the tafarru3 command-line interface.
//
// The commands wrap [editor.Editor]: they import and export diagram files,
// run the auto-layout on CSV files, manage locally saved sessions, publish
// sessions to Neo4j and serve the editor over HTTP for the render layer.
//
// # Configuration
//
// Settings come from the config file (--config, default
// ~/.config/tafarru3/config.toml), TAFARRU3_* environment variables and
// command flags. Flags that override a config key are bound to it, so
// "--placer graphviz" and TAFARRU3_LAYOUT_PLACER=graphviz are equivalent.
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. Without it the
// level comes from log.level.
package cli

import (
	"context"
	"errors"
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ammusto/tafarru3/pkg/buildinfo"
	"github.com/ammusto/tafarru3/pkg/cache"
	"github.com/ammusto/tafarru3/pkg/config"
	"github.com/ammusto/tafarru3/pkg/editor"
	"github.com/ammusto/tafarru3/pkg/session"
)

const appName = "tafarru3"

// configKey is the flag annotation naming the config key a flag overrides.
const configKey = "tafarru3_config_key"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
	verbose    bool
	cfg        *config.Config
}

// New creates a new CLI instance logging to w.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "tafarru3 edits genealogy tree diagrams",
		Long: `tafarru3 is the state engine of a genealogy tree editor. It imports and
exports CSV diagrams, lays trees out automatically, keeps recent sessions and
serves the editor to the browser render layer over HTTP.`,
		Version:           buildinfo.Get().Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default ~/.config/tafarru3/config.toml)")

	root.AddCommand(c.importCommand())
	root.AddCommand(c.exportCommand())
	root.AddCommand(c.layoutCommand())
	root.AddCommand(c.templateCommand())
	root.AddCommand(c.sessionsCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.publishCommand())
	root.AddCommand(c.configCommand())
	root.AddCommand(c.versionCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// setup loads the configuration for the command being run and attaches the
// logger to its context.
func (c *CLI) setup(cmd *cobra.Command, args []string) error {
	v, err := config.New(c.configPath)
	if err != nil {
		return err
	}
	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if keys, ok := f.Annotations[configKey]; ok && len(keys) > 0 {
			bindErr = errors.Join(bindErr, v.BindPFlag(keys[0], f))
		}
	})
	if bindErr != nil {
		return bindErr
	}
	cfg, err := config.Decode(v)
	if err != nil {
		return err
	}
	c.cfg = cfg

	if level, err := log.ParseLevel(cfg.Log.Level); err == nil {
		c.SetLogLevel(level)
	}
	return c.attachLogger(cmd, args)
}

// attachLogger applies --verbose and puts the logger on the command context.
// Commands that must run without a readable config use it in place of setup.
func (c *CLI) attachLogger(cmd *cobra.Command, args []string) error {
	if c.verbose {
		c.SetLogLevel(LogDebug)
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(withLogger(ctx, c.Logger))
	return nil
}

// bindFlag marks flag name on cmd as an override for config key.
func bindFlag(cmd *cobra.Command, name, key string) {
	_ = cmd.Flags().SetAnnotation(name, configKey, []string{key})
}

// settings returns the loaded configuration, falling back to the built-in
// defaults when a command runs without the root pre-run (tests).
func (c *CLI) settings() *config.Config {
	if c.cfg == nil {
		d := config.Default()
		c.cfg = &d
	}
	return c.cfg
}

// =============================================================================
// Editor Factory
// =============================================================================

// editorOptions selects what an editor opened by a command is wired to.
type editorOptions struct {
	sessions bool
	autosave bool
}

// openEditor builds an editor from the configuration. The returned close
// function flushes auto-save and releases every backend.
func (c *CLI) openEditor(ctx context.Context, opts editorOptions) (*editor.Editor, func(), error) {
	cfg := c.settings()
	logger := loggerFromContext(ctx)

	layoutOpts, err := cfg.Layout.Options()
	if err != nil {
		return nil, nil, err
	}

	var sessions *session.Store
	if opts.sessions {
		sessions, err = c.openSessions(ctx)
		if err != nil {
			return nil, nil, err
		}
	}

	lc, err := cfg.Cache.Open(ctx)
	if err != nil {
		logger.Warn("layout cache unavailable", "backend", cfg.Cache.Backend, "err", err)
		lc = nil
	}

	delay := cfg.Autosave.AutosaveDelay()
	if !opts.autosave {
		delay = -1
	}
	ed := editor.New(editor.Options{
		Sessions:      sessions,
		Cache:         lc,
		Layout:        layoutOpts,
		AutosaveDelay: delay,
		HistoryLimit:  cfg.History.Limit,
		Logger:        logger,
	})

	closeAll := func() {
		if err := ed.Close(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("final auto-save failed", "err", err)
		}
		if sessions != nil {
			sessions.Close()
		}
		closeCache(lc)
	}
	return ed, closeAll, nil
}

func (c *CLI) openSessions(ctx context.Context) (*session.Store, error) {
	cfg := c.settings()
	backend, err := cfg.Session.Open(ctx)
	if err != nil {
		return nil, err
	}
	return session.NewStore(backend,
		session.WithLimit(cfg.Session.Limit),
		session.WithLogger(loggerFromContext(ctx))), nil
}

func closeCache(c cache.Cache) {
	if c != nil {
		c.Close()
	}
}
