package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"diskdash/internal/config"
	"diskdash/internal/settings"
)

var mergeCmd = &cobra.Command{
	Use:   "merge [override-file]",
	Short: "Merge a settings document over the defaults",
	Long: `Merge a stored settings document (YAML or JSON) over the default settings
and print the result. Values that are null or empty strings keep their
default; nested objects are merged key by key.

With no file, or "-", the override is read from stdin.

Examples:
  diskdash merge settings.yaml
  diskdash merge --defaults site-defaults.yaml --output json settings.json
  echo '{"theme": "dark"}' | diskdash merge`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		defaultsPath, _ := cmd.Flags().GetString("defaults")
		output, _ := cmd.Flags().GetString("output")

		extra, err := config.LoadDefaults(defaultsPath)
		if err != nil {
			return err
		}

		src := "-"
		if len(args) == 1 {
			src = args[0]
		}
		override, err := readOverride(cmd.InOrStdin(), src)
		if err != nil {
			return err
		}

		merged := settings.Merge(settings.Merge(settings.Defaults(), extra), override)
		return writeTree(cmd.OutOrStdout(), merged, output)
	},
}

func init() {
	mergeCmd.Flags().String("defaults", "", "YAML file merged over the built-in defaults first")
	mergeCmd.Flags().StringP("output", "o", "yaml", "Output format: yaml or json")
	rootCmd.AddCommand(mergeCmd)
}

func readOverride(stdin io.Reader, path string) (any, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read override: %w", err)
	}

	// JSON documents are valid YAML.
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parse override: %w", err)
	}
	return settings.Normalize(v), nil
}

func writeTree(w io.Writer, t settings.Tree, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(t)
	case "yaml", "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(t); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
