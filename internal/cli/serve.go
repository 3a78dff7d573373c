package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/ammusto/tafarru3/pkg/config"
	"github.com/ammusto/tafarru3/pkg/server"
	neo4jsink "github.com/ammusto/tafarru3/pkg/sink/neo4j"
)

// =============================================================================
// serve
// =============================================================================

func (c *CLI) serveCommand() *cobra.Command {
	var sessionName string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the editor over HTTP and WebSocket",
		Long: `Serve the editor to the browser render layer.

The API lives under /api, live state updates stream over /ws and Prometheus
metrics are exposed at /metrics. Edits are auto-saved to the session store
unless autosave.enabled is false. Stop the server with Ctrl+C; pending
auto-saves are flushed before exit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), sessionName)
		},
	}

	cmd.Flags().String("addr", config.Default().Server.Addr, "listen address")
	cmd.Flags().StringVarP(&sessionName, "session", "s", "", "open this saved session on start")
	bindFlag(cmd, "addr", "server.addr")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, sessionName string) error {
	cfg := c.settings()
	logger := loggerFromContext(ctx)

	ed, closeEditor, err := c.openEditor(ctx, editorOptions{sessions: true, autosave: true})
	if err != nil {
		return err
	}
	defer closeEditor()

	if sessionName != "" {
		if err := ed.OpenSession(ctx, sessionName); err != nil {
			return err
		}
		logger.Info("opened session", "name", sessionName)
	}

	metrics := server.NewMetrics()
	metrics.Register()

	srv := server.New(ed, server.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Metrics:        metrics,
		Logger:         logger,
	})

	printSuccess("Serving on %s", StyleHighlight.Render("http://"+cfg.Server.Addr))
	printDetail("Ctrl+C to stop")
	if err := srv.ListenAndServe(ctx, cfg.Server.Addr); err != nil {
		return err
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		logger.Info("server stopped")
	}
	return nil
}

// =============================================================================
// publish
// =============================================================================

func (c *CLI) publishCommand() *cobra.Command {
	def := config.Default().Neo4j

	cmd := &cobra.Command{
		Use:   "publish [session]",
		Short: "Publish a saved session to Neo4j",
		Long: `Publish a saved session to a Neo4j database.

People become :Person nodes, parent links become :PARENT_OF relationships and
every other connection becomes :CONNECTED_TO. Publishing a project again
replaces its previous graph. The password is read from neo4j.password or
TAFARRU3_NEO4J_PASSWORD.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runPublish(cmd.Context(), args[0])
		},
	}

	cmd.Flags().String("uri", def.URI, "Neo4j connection URI")
	cmd.Flags().String("username", def.Username, "Neo4j user")
	cmd.Flags().String("database", def.Database, "Neo4j database (default: server default)")
	bindFlag(cmd, "uri", "neo4j.uri")
	bindFlag(cmd, "username", "neo4j.username")
	bindFlag(cmd, "database", "neo4j.database")

	return cmd
}

func (c *CLI) runPublish(ctx context.Context, name string) error {
	cfg := c.settings().Neo4j
	logger := loggerFromContext(ctx)

	store, err := c.openSessions(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	sess, err := store.Load(ctx, name)
	if err != nil {
		return err
	}

	spin := newSpinner(ctx, "Publishing to "+cfg.URI+"...")
	spin.Start()
	sink, err := neo4jsink.Open(ctx, neo4jsink.Config{
		URI:      cfg.URI,
		Username: cfg.Username,
		Password: cfg.Password,
		Database: cfg.Database,
	}, logger)
	if err != nil {
		spin.Fail("Connection failed")
		return err
	}
	defer sink.Close(context.WithoutCancel(ctx))

	stats, err := sink.Publish(ctx, sess.Name, sess.Document())
	if err != nil {
		spin.Fail("Publish failed")
		return err
	}
	spin.Stop()

	printSuccess("Published %s", StyleHighlight.Render(sess.Name))
	printDetail("%s", stats)
	if stats.Removed > 0 {
		printDetail("replaced %s from the previous publish", plural(stats.Removed, "person", "people"))
	}
	return nil
}
