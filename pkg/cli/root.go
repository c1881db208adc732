// Package cli implements the tickmirror command line.
package cli

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/harrisonrobin/tickmirror/pkg/config"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	configPath string
	verbose    bool
	rootCmd    *cobra.Command

	// cfg is loaded before every command runs.
	cfg *config.Config
	// logSink closes the rotating log file, if one is open.
	logSink io.Closer
)

func init() {
	rootCmd = &cobra.Command{
		Use:   "tickmirror",
		Short: "Mirror a TickTick account locally and into Google Calendar",
		Long: `tickmirror keeps an in-memory mirror of a TickTick account and manages its
tasks, tags and projects. The watch command polls the account and can push dated tasks
into a Google Calendar.`,
		SilenceUsage:       true,
		SilenceErrors:      true,
		PersistentPreRunE:  setup,
		PersistentPostRunE: teardown,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.json (default ~/.config/tickmirror/config.json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log HTTP and sync activity to stderr")

	rootCmd.AddCommand(authCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(tasksCmd)
	rootCmd.AddCommand(tagsCmd)
	rootCmd.AddCommand(projectsCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(configCmd)
}

func setup(cmd *cobra.Command, args []string) error {
	var err error
	if configPath == "" {
		configPath, err = config.GetConfigPath()
		if err != nil {
			return fmt.Errorf("could not find path to configuration file: %w", err)
		}
	}
	cfg, err = config.LoadFrom(configPath)
	if err != nil {
		return err
	}

	var out io.Writer = io.Discard
	if verbose {
		out = os.Stderr
	}
	if cfg.LogFile != "" {
		rotating := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
		}
		logSink = rotating
		out = io.MultiWriter(out, rotating)
	}
	log.SetOutput(out)
	return nil
}

func teardown(cmd *cobra.Command, args []string) error {
	if logSink == nil {
		return nil
	}
	err := logSink.Close()
	logSink = nil
	return err
}

// logger returns a component logger writing where the standard logger writes.
func logger(prefix string) *log.Logger {
	return log.New(log.Writer(), "["+prefix+"] ", log.LstdFlags)
}

// Execute runs the root command.
func Execute(version string) error {
	rootCmd.Version = version
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}
