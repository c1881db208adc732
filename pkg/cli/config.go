package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/harrisonrobin/tickmirror/pkg/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage tickmirror configuration",
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set one configuration key",
	Long:  "Set one configuration key. Known keys: " + strings.Join(config.Keys(), ", "),
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration, secrets masked",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the configuration file path",
	Args:  cobra.NoArgs,
	Run:   runConfigPath,
}

func init() {
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	updated, err := config.Set(configPath, args[0], args[1])
	if err != nil {
		return err
	}
	cfg = updated
	fmt.Fprintf(cmd.OutOrStdout(), "%s set in %s\n", args[0], configPath)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	shown := *cfg
	for _, secret := range []*string{&shown.Password, &shown.ClientSecret, &shown.AccessToken} {
		if *secret != "" {
			*secret = "********"
		}
	}
	data, err := json.MarshalIndent(shown, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) {
	fmt.Fprintln(cmd.OutOrStdout(), configPath)
}
