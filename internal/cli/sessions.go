package cli

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/ammusto/tafarru3/pkg/session"
)

func (c *CLI) sessionsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"session"},
		Short:   "Manage recently saved sessions",
		Long: `Manage recently saved sessions.

Sessions are kept most recent first; once the limit (session.limit) is reached
the oldest session is dropped on save.`,
	}

	cmd.AddCommand(c.sessionsListCommand())
	cmd.AddCommand(c.sessionsShowCommand())
	cmd.AddCommand(c.sessionsDeleteCommand())
	cmd.AddCommand(c.sessionsOpenCommand())

	return cmd
}

func (c *CLI) sessionsListCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List saved sessions",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := c.listSessions(cmd.Context())
			if err != nil {
				return err
			}
			if len(list) == 0 {
				printInfo("No saved sessions")
				printNextStep("Import one", appName+" import tree.csv")
				return nil
			}
			writeLine(sessionTable(list, time.Now()))
			return nil
		},
	}
}

func (c *CLI) sessionsShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show [name]",
		Short: "Show a saved session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := c.openSessions(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			sess, err := store.Load(ctx, args[0])
			if err != nil {
				return err
			}
			printKeyValue("Project", sess.Name)
			printKeyValue("People", fmt.Sprint(len(sess.Nodes)))
			printKeyValue("Links", fmt.Sprint(len(sess.Edges)))
			printKeyValue("Saved", sess.SavedAt.Local().Format(time.RFC1123))
			return nil
		},
	}
}

func (c *CLI) sessionsDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "delete [name]",
		Aliases: []string{"rm"},
		Short:   "Delete a saved session",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := c.openSessions(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Delete(ctx, args[0]); err != nil {
				return err
			}
			printSuccess("Deleted %s", StyleHighlight.Render(args[0]))
			return nil
		},
	}
}

func (c *CLI) sessionsOpenCommand() *cobra.Command {
	var (
		output string
		format string
	)

	cmd := &cobra.Command{
		Use:   "open",
		Short: "Pick a saved session interactively and export it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			list, err := c.listSessions(ctx)
			if err != nil {
				return err
			}
			if len(list) == 0 {
				printInfo("No saved sessions")
				return nil
			}

			final, err := tea.NewProgram(NewSessionListModel(list, time.Now()), tea.WithContext(ctx)).Run()
			if err != nil {
				return err
			}
			picked := final.(SessionListModel).Selected
			if picked == nil {
				return nil
			}

			out := output
			if out == "" {
				ext := formatCSV
				if format == formatJSON {
					ext = formatJSON
				}
				out = picked.Name + "." + ext
			}
			return c.runExport(ctx, picked.Name, out, format)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: <name>.csv)")
	cmd.Flags().StringVarP(&format, "format", "f", "", "output format: csv, json (default: from extension)")

	return cmd
}

func (c *CLI) listSessions(ctx context.Context) ([]session.Summary, error) {
	store, err := c.openSessions(ctx)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	return store.List(ctx)
}
