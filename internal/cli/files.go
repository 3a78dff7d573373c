package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ammusto/tafarru3/pkg/codec"
	"github.com/ammusto/tafarru3/pkg/config"
	"github.com/ammusto/tafarru3/pkg/editor"
	apperr "github.com/ammusto/tafarru3/pkg/errors"
)

const (
	formatCSV  = "csv"
	formatJSON = "json"
)

// formatFor picks the file format from an explicit flag or the extension.
func formatFor(flag, path string) (string, error) {
	f := strings.ToLower(strings.TrimSpace(flag))
	if f == "" {
		if strings.EqualFold(filepath.Ext(path), ".json") {
			return formatJSON, nil
		}
		return formatCSV, nil
	}
	if f != formatCSV && f != formatJSON {
		return "", apperr.New(apperr.ErrCodeInvalidInput, "unknown format %q (want csv or json)", flag)
	}
	return f, nil
}

func projectNameFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// =============================================================================
// import
// =============================================================================

func (c *CLI) importCommand() *cobra.Command {
	var (
		name       string
		format     string
		autoLayout bool
	)

	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Import a CSV or JSON diagram as a saved session",
		Long: `Import a CSV or JSON diagram and save it as a session.

Rows without X/Y coordinates are positioned by the auto-layout. Files using the
legacy Connections/ConnectionStyles columns are converted on the way in. The
session is named after the file unless --name is given; importing a name that
already exists overwrites that session.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runImport(cmd.Context(), args[0], name, format, autoLayout)
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "session name (default: file name)")
	cmd.Flags().StringVarP(&format, "format", "f", "", "input format: csv, json (default: from extension)")
	cmd.Flags().BoolVar(&autoLayout, "layout", false, "re-run the auto-layout after import")

	return cmd
}

func (c *CLI) runImport(ctx context.Context, path, name, format string, autoLayout bool) error {
	format, err := formatFor(format, path)
	if err != nil {
		return err
	}
	if name == "" {
		name = projectNameFromPath(path)
	}
	if err := apperr.ValidateProjectName(name); err != nil {
		return err
	}

	ed, closeEditor, err := c.openEditor(ctx, editorOptions{sessions: true})
	if err != nil {
		return err
	}
	defer closeEditor()

	prog := newProgress(loggerFromContext(ctx))
	var res *codec.Result
	switch format {
	case formatJSON:
		err = ed.ImportJSONFile(ctx, path)
	default:
		res, err = ed.ImportCSVFile(ctx, path)
	}
	if err != nil {
		return err
	}
	ed.Store.SetProjectName(name)

	cached := false
	if autoLayout {
		if cached, err = ed.AutoLayout(ctx); err != nil {
			return err
		}
	}
	if err := ed.SaveSession(ctx); err != nil {
		return err
	}

	st := ed.Store.State()
	prog.done("Imported "+path, "session", name)
	printSuccess("Imported %s", StyleHighlight.Render(name))
	printFile(path)
	tags := []string{format}
	if cached {
		tags = append(tags, "cached")
	}
	printStats(len(st.Nodes), len(st.Edges), tags...)
	if res != nil {
		if res.Legacy {
			printDetail("legacy connection columns converted")
		}
		if res.LaidOut {
			printDetail("positions computed by auto-layout")
		}
		if res.Dropped > 0 {
			printWarning("%d conflicting connections dropped", res.Dropped)
		}
	}
	printNewline()
	printNextStep("Export", fmt.Sprintf("%s export %q -o %s.csv", appName, name, name))
	return nil
}

// =============================================================================
// export
// =============================================================================

func (c *CLI) exportCommand() *cobra.Command {
	var (
		output string
		format string
	)

	cmd := &cobra.Command{
		Use:   "export [session]",
		Short: "Export a saved session as CSV or JSON",
		Long: `Export a saved session as CSV or JSON.

Without --output the diagram is written to stdout. The format follows the
output extension unless --format is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runExport(cmd.Context(), args[0], output, format)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().StringVarP(&format, "format", "f", "", "output format: csv, json (default: from extension)")

	return cmd
}

func (c *CLI) runExport(ctx context.Context, name, output, format string) error {
	format, err := formatFor(format, output)
	if err != nil {
		return err
	}

	ed, closeEditor, err := c.openEditor(ctx, editorOptions{sessions: true})
	if err != nil {
		return err
	}
	defer closeEditor()

	if err := ed.OpenSession(ctx, name); err != nil {
		return err
	}
	return writeDiagram(ctx, ed, output, format)
}

// writeDiagram writes the open diagram to output, or stdout when output is
// empty.
func writeDiagram(ctx context.Context, ed *editor.Editor, output, format string) error {
	if output == "" {
		if format == formatJSON {
			return ed.ExportJSON(ctx, stdout)
		}
		return ed.ExportCSV(ctx, stdout)
	}

	var err error
	if format == formatJSON {
		err = ed.ExportJSONFile(ctx, output)
	} else {
		err = ed.ExportCSVFile(ctx, output)
	}
	if err != nil {
		return err
	}
	st := ed.Store.State()
	printSuccess("Exported %s", StyleHighlight.Render(st.ProjectName))
	printFile(output)
	printStats(len(st.Nodes), len(st.Edges), format)
	return nil
}

// =============================================================================
// layout
// =============================================================================

func (c *CLI) layoutCommand() *cobra.Command {
	var output string
	def := config.Default().Layout

	cmd := &cobra.Command{
		Use:   "layout [diagram.csv]",
		Short: "Auto-layout a CSV diagram",
		Long: `Auto-layout a CSV diagram.

Every person is placed on a rank below their parent, siblings are spread so
their boxes never overlap, and the result is written back as CSV with X/Y
filled in. Styling, labels and non-hierarchical connections are preserved.

Results are cached by tree shape, so re-running on an unchanged tree is
instant.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runLayout(cmd.Context(), args[0], output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: <input>.layout.csv)")
	cmd.Flags().String("placer", def.Placer, "raw placement: tidy, graphviz")
	cmd.Flags().String("direction", def.Direction, "rank direction: TB, LR")
	cmd.Flags().Float64("rank-sep", def.RankSep, "gap between ranks in pixels")
	cmd.Flags().Float64("node-sep", def.NodeSep, "gap between siblings in pixels")
	cmd.Flags().Float64("margin", def.Margin, "minimum x and y of the result")
	bindFlag(cmd, "placer", "layout.placer")
	bindFlag(cmd, "direction", "layout.direction")
	bindFlag(cmd, "rank-sep", "layout.rank_sep")
	bindFlag(cmd, "node-sep", "layout.node_sep")
	bindFlag(cmd, "margin", "layout.margin")

	return cmd
}

func (c *CLI) runLayout(ctx context.Context, input, output string) error {
	ed, closeEditor, err := c.openEditor(ctx, editorOptions{})
	if err != nil {
		return err
	}
	defer closeEditor()

	if _, err := ed.ImportCSVFile(ctx, input); err != nil {
		return fmt.Errorf("load %s: %w", input, err)
	}

	spin := newSpinner(ctx, "Laying out tree...")
	spin.Start()
	cached, err := ed.AutoLayout(ctx)
	if err != nil {
		spin.Fail("Layout failed")
		return err
	}
	spin.Stop()
	if ctx.Err() != nil {
		return ctx.Err()
	}

	if output == "" {
		output = strings.TrimSuffix(input, filepath.Ext(input)) + ".layout.csv"
	}
	if err := ed.ExportCSVFile(ctx, output); err != nil {
		return err
	}

	st := ed.Store.State()
	status := "fresh"
	if cached {
		status = "cached"
	}
	printSuccess("Layout complete")
	printFile(output)
	printStats(len(st.Nodes), len(st.Edges), c.settings().Layout.Placer, status)
	printNewline()
	printNextStep("Import", appName+" import "+output)
	return nil
}

// =============================================================================
// template
// =============================================================================

func (c *CLI) templateCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "template",
		Short: "Write a starter CSV with every column and one example person",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				return codec.WriteTemplate(stdout)
			}
			f, err := os.Create(output)
			if err != nil {
				return apperr.Wrap(apperr.ErrCodeInvalidPath, err, "create %s", output)
			}
			if err := codec.WriteTemplate(f); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			printSuccess("Template written")
			printFile(output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")

	return cmd
}
