package main

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/gauntlet/internal/config"
)

var configProject bool

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "View or change configuration",
	Long: `View or modify gauntlet configuration.

Without arguments, displays the effective configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), writes the value to the user config,
or to the project's .gauntlet.yaml with --project.

User config lives at ~/.config/gauntlet/config.yaml.`,
	Args: cobra.MaximumNArgs(2),
	RunE: runConfig,
}

func init() {
	configCmd.Flags().BoolVar(&configProject, "project", false, "Write to the project config instead of the user config")
}

func runConfig(cmd *cobra.Command, args []string) error {
	p, err := openProject()
	if err != nil {
		return err
	}
	defer p.Close()

	settings := p.cfg.Settings()

	switch len(args) {
	case 0:
		if jsonOutput {
			return printJSON(settings)
		}
		keys := make([]string, 0, len(settings))
		for k := range settings {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("%s: %s\n", k, formatSetting(settings[k]))
		}
		fmt.Println()
		fmt.Println(mutedStyle.Render("user:    " + config.GetUserConfigPath()))
		if path := config.GetProjectConfigPath(p.root); path != "" {
			fmt.Println(mutedStyle.Render("project: " + path))
		}
		fmt.Println(mutedStyle.Render("api key: " + string(config.GetAPIKeySource(p.cfg))))
		return nil

	case 1:
		value, ok := settings[strings.ToLower(args[0])]
		if !ok {
			return fmt.Errorf("unknown configuration key: %s", args[0])
		}
		if jsonOutput {
			return printJSON(value)
		}
		fmt.Println(formatSetting(value))
		return nil

	default:
		path := config.GetUserConfigPath()
		if configProject {
			path = config.GetProjectConfigPath(p.root)
			if path == "" {
				path = filepath.Join(p.root, config.ProjectConfigName)
			}
		}
		if err := config.SetValue(path, args[0], args[1]); err != nil {
			return err
		}
		printStatus("✓", fmt.Sprintf("Set %s in %s", args[0], path), okColor)
		return nil
	}
}

func formatSetting(v interface{}) string {
	switch val := v.(type) {
	case string:
		if val == "" {
			return "(not set)"
		}
		return val
	case []string:
		if len(val) == 0 {
			return "[]"
		}
		return "[" + strings.Join(val, ", ") + "]"
	default:
		return fmt.Sprint(val)
	}
}
