package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/manav03panchal/livedesk/internal/config"
	lderrors "github.com/manav03panchal/livedesk/internal/errors"
	"github.com/manav03panchal/livedesk/internal/logging"
	"github.com/manav03panchal/livedesk/internal/output"
)

// configCmd represents the config command.
var configCmd = &cobra.Command{
	Use:     "config",
	Aliases: []string{"cfg", "settings"},
	Short:   "Inspect the runtime configuration",
	Long: `Inspect the runtime configuration.

Values come from built-in defaults, the config file and LIVEDESK_ environment
variables, in increasing order of precedence. queue.stale_after is set with
LIVEDESK_QUEUE_STALE_AFTER.

Examples:
  livedesk config show
  livedesk config get queue.stale_after
  livedesk config init
  livedesk config path`,
	Annotations: map[string]string{annotationNoStore: "true"},
	RunE:        runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:         "show",
	Short:       "Show every effective setting",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{annotationNoStore: "true"},
	RunE:        runConfigShow,
}

var configGetCmd = &cobra.Command{
	Use:         "get KEY",
	Short:       "Show one effective setting",
	Args:        cobra.ExactArgs(1),
	Annotations: map[string]string{annotationNoStore: "true"},
	RunE:        runConfigGet,
}

var configPathCmd = &cobra.Command{
	Use:         "path",
	Short:       "Print the config file path",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{annotationNoStore: "true"},
	RunE:        runConfigPath,
}

var configInitCmd = &cobra.Command{
	Use:         "init",
	Short:       "Write a config file with the default settings",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{annotationNoStore: "true"},
	RunE:        runConfigInit,
}

var configValidateCmd = &cobra.Command{
	Use:         "validate",
	Short:       "Check the configuration",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{annotationNoStore: "true"},
	RunE:        runConfigValidate,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)
	rootCmd.AddCommand(configCmd)
}

// configFormatter returns a formatter for commands that run without the
// runtime context.
func configFormatter() *output.Formatter {
	f := output.NewFormatter()
	if flagFormat == "json" {
		f.Format = output.FormatJSON
	}
	switch flagColor {
	case "always":
		f.ColorMode = output.ColorAlways
	case "never":
		f.ColorMode = output.ColorNever
	}
	return f
}

// displayValue renders a setting, masking credentials.
func displayValue(key string, v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	if key == "store.uri" {
		return logging.MaskCredentials(s)
	}
	if logging.IsSensitiveField(key) {
		return logging.MaskValue(s)
	}
	return s
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	settings, err := config.Settings(flagConfig)
	if err != nil {
		return err
	}
	for k, v := range settings {
		settings[k] = displayValue(k, v)
	}

	f := configFormatter()
	if f.Format == output.FormatJSON {
		return f.JSON(settings)
	}

	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	cli := output.NewCLIFormatter(f)
	section := ""
	for _, k := range keys {
		head, name, _ := strings.Cut(k, ".")
		if head != section {
			if section != "" {
				cli.Println("")
			}
			cli.Title(head)
			section = head
		}
		cli.Printf("  %-20s %v\n", name, settings[k])
	}
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	settings, err := config.Settings(flagConfig)
	if err != nil {
		return err
	}
	key := strings.ToLower(args[0])
	v, ok := settings[key]
	if !ok {
		return lderrors.NewUserErrorWithField("key", args[0],
			"Unknown config key",
			"Use 'livedesk config show' to list every key")
	}
	v = displayValue(key, v)

	f := configFormatter()
	if f.Format == output.FormatJSON {
		return f.JSON(map[string]any{"key": key, "value": v})
	}
	f.Println(fmt.Sprint(v))
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	path := flagConfig
	if path == "" {
		path = config.DefaultPath()
	}
	f := configFormatter()
	if f.Format == output.FormatJSON {
		return f.JSON(map[string]string{"path": path})
	}
	f.Println(path)
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := flagConfig
	if path == "" {
		path = config.DefaultPath()
	}
	if err := config.WriteDefault(path); err != nil {
		return lderrors.NewUserErrorWithField("path", path,
			"Could not write config file: "+err.Error(),
			"Remove the existing file or pass another path with --config")
	}
	f := configFormatter()
	if f.Format == output.FormatJSON {
		return f.JSON(map[string]string{"status": "created", "path": path})
	}
	output.NewCLIFormatter(f).Success("Wrote " + path)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	if _, err := config.Load(flagConfig); err != nil {
		return lderrors.NewUserError("Invalid configuration: "+err.Error(),
			"Fix the value in the config file or the LIVEDESK_ environment variable")
	}
	f := configFormatter()
	if f.Format == output.FormatJSON {
		return f.JSON(map[string]string{"status": "valid"})
	}
	output.NewCLIFormatter(f).Success("Configuration is valid")
	return nil
}
