package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/harrisonrobin/tickmirror/pkg/auth"
	"github.com/harrisonrobin/tickmirror/pkg/colors"
	"github.com/harrisonrobin/tickmirror/pkg/config"
	"github.com/harrisonrobin/tickmirror/pkg/google"
	"github.com/harrisonrobin/tickmirror/pkg/index"
	"github.com/harrisonrobin/tickmirror/pkg/model"
	"github.com/harrisonrobin/tickmirror/pkg/poll"
	"github.com/harrisonrobin/tickmirror/pkg/ticktick"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Poll the account and publish every refresh",
	Long: `Refreshes the mirror every poll_interval (one minute by default). Each refresh
prints the to-do lists, and with --export pushes dated tasks into the configured Google
Calendar. Stops on interrupt.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Push dated tasks into the configured Google Calendar once",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

func init() {
	watchCmd.Flags().Bool("export", false, "Export each refresh to Google Calendar")
	watchCmd.Flags().Bool("quiet", false, "Do not print the to-do lists")
	exportCmd.Flags().String("calendar", "", "Google Calendar name (overrides config)")
	watchCmd.Flags().String("calendar", "", "Google Calendar name (overrides config)")
}

func newExporter(ctx context.Context, client *ticktick.Client, calendarName string) (*google.Exporter, error) {
	dir, err := config.Dir()
	if err != nil {
		return nil, err
	}
	srv, err := auth.CalendarService(ctx, dir)
	if err != nil {
		return nil, err
	}
	if calendarName == "" {
		calendarName = cfg.Calendar
	}
	calendarID, err := google.FindCalendar(ctx, srv, calendarName)
	if err != nil {
		return nil, err
	}
	idx, err := index.Open(filepath.Join(dir, index.EventsFile))
	if err != nil {
		return nil, err
	}
	cache, err := colors.NewCache(filepath.Join(dir, colors.CacheFile))
	if err != nil {
		return nil, err
	}
	return google.NewExporter(google.NewCalendarClient(srv, calendarID, idx), idx, cache, client.TimeZone(), logger("calendar")), nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	interval, err := cfg.Interval()
	if err != nil {
		return err
	}
	client, err := connect(ctx)
	if err != nil {
		return err
	}
	loc, err := time.LoadLocation(client.TimeZone())
	if err != nil {
		loc = time.Local
	}
	poller := poll.New(client, interval, loc, logger("poll"))

	if quiet, _ := cmd.Flags().GetBool("quiet"); !quiet {
		out := cmd.OutOrStdout()
		poller.Subscribe(func(ctx context.Context, d poll.Data) error {
			fmt.Fprintf(out, "-- %s --\n", d.Time.Format(time.Kitchen))
			renderLists(out, d.Lists)
			return nil
		})
	}
	if export, _ := cmd.Flags().GetBool("export"); export {
		name, _ := cmd.Flags().GetString("calendar")
		exporter, err := newExporter(ctx, client, name)
		if err != nil {
			return err
		}
		poller.Subscribe(func(ctx context.Context, d poll.Data) error {
			_, err := exporter.Export(ctx, d.Tasks, projectNames(d.Projects, d.InboxID))
			return err
		})
	}

	if err := poller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	client, err := connect(ctx)
	if err != nil {
		return err
	}
	name, _ := cmd.Flags().GetString("calendar")
	exporter, err := newExporter(ctx, client, name)
	if err != nil {
		return err
	}
	tasks, err := client.Store().Collection(model.Tasks)
	if err != nil {
		return err
	}
	projects, err := client.Store().Collection(model.Projects)
	if err != nil {
		return err
	}
	stats, err := exporter.Export(ctx, tasks, projectNames(projects, client.InboxID()))
	fmt.Fprintf(cmd.OutOrStdout(), "%d written, %d unchanged, %d deleted, %d skipped\n",
		stats.Written, stats.Unchanged, stats.Deleted, stats.Skipped)
	return err
}
