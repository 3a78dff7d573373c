package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ammusto/tafarru3/pkg/buildinfo"
	"github.com/ammusto/tafarru3/pkg/config"
	apperr "github.com/ammusto/tafarru3/pkg/errors"
)

func (c *CLI) configCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and initialize the configuration",
	}
	// The file may not exist or parse yet.
	cmd.PersistentPreRunE = c.attachLogger

	cmd.AddCommand(c.configInitCommand())
	cmd.AddCommand(c.configShowCommand())
	cmd.AddCommand(c.configPathCommand())

	return cmd
}

func (c *CLI) configInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with the built-in defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := c.resolvedConfigPath()
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil && !force {
				return apperr.New(apperr.ErrCodeConflict, "%s already exists (use --force to overwrite)", path)
			}
			if err := writeDefaultConfig(path); err != nil {
				return err
			}
			printSuccess("Config written")
			printFile(path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	return cmd
}

func writeDefaultConfig(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return apperr.Wrap(apperr.ErrCodeInvalidPath, err, "create %s", filepath.Dir(path))
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return apperr.Wrap(apperr.ErrCodeInvalidPath, err, "create %s", path)
	}
	if err := config.WriteDefault(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (c *CLI) configShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective settings",
		Long: `Print every setting after merging the config file and TAFARRU3_*
environment variables. Passwords are masked.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := config.New(c.configPath)
			if err != nil {
				return err
			}
			for _, line := range settingLines(v) {
				writeLine(line)
			}
			return nil
		},
	}
}

// settingLines renders v's keys as sorted "key = value" lines.
func settingLines(v *viper.Viper) []string {
	keys := v.AllKeys()
	slices.Sort(keys)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		val := fmt.Sprint(v.Get(k))
		if strings.HasSuffix(k, "password") && val != "" {
			val = "********"
		}
		lines = append(lines, styleKey.Width(28).Render(k)+" "+StyleValue.Render(val))
	}
	return lines
}

func (c *CLI) configPathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := c.resolvedConfigPath()
			if err != nil {
				return err
			}
			writeLine(path)
			return nil
		},
	}
}

func (c *CLI) resolvedConfigPath() (string, error) {
	if c.configPath != "" {
		return c.configPath, nil
	}
	return config.DefaultPath()
}

func (c *CLI) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			writeLine(buildinfo.String())
			return nil
		},
	}
}
