package cli

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/harrisonrobin/tickmirror/pkg/auth"
	"github.com/harrisonrobin/tickmirror/pkg/config"
	"github.com/spf13/cobra"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authorize the TickTick open API (and optionally Google Calendar)",
	Long: `Runs the browser authorization flow and stores the token next to the config file.
The TickTick client id and secret must be configured first. With --google the Google
Calendar token is refreshed as well, using credentials.json from the config directory.`,
	RunE: runAuth,
}

func init() {
	authCmd.Flags().Bool("google", false, "Authorize Google Calendar instead of TickTick")
}

func runAuth(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	dir, err := config.Dir()
	if err != nil {
		return fmt.Errorf("could not find path to configuration file: %w", err)
	}

	google, _ := cmd.Flags().GetBool("google")
	if google {
		tokenFile := filepath.Join(dir, auth.GoogleTokenFile)
		if err := removeToken(tokenFile); err != nil {
			return err
		}
		if _, err := auth.CalendarService(ctx, dir); err != nil {
			return fmt.Errorf("authentication failed: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Authentication successful! Token saved to %s\n", tokenFile)
		return nil
	}

	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return fmt.Errorf("client_id and client_secret are not configured")
	}
	oauthCfg := auth.TickTickConfig(cfg.ClientID, cfg.ClientSecret, cfg.RedirectURL)
	if _, err := auth.Login(ctx, oauthCfg, dir); err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Authentication successful! Token saved to %s\n", filepath.Join(dir, auth.TokenFile))
	return nil
}

func removeToken(path string) error {
	_, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		log.Printf("could not check token file '%s', error %v", path, err)
		return nil
	}
	log.Printf("Removing existing token file at '%s'", path)
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("could not delete token file '%s': %w. Please delete it manually", path, err)
	}
	return nil
}
