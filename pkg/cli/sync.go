package cli

import (
	"fmt"

	"github.com/harrisonrobin/tickmirror/pkg/model"
	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Log in, fetch the full account state and print a summary",
	RunE:  runSync,
}

func runSync(cmd *cobra.Command, args []string) error {
	client, err := connect(cmd.Context())
	if err != nil {
		return err
	}
	s := client.Store()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Time zone: %s\nInbox: %s\n", client.TimeZone(), client.InboxID())
	for _, name := range []string{model.Projects, model.ProjectFolders, model.Tags, model.Tasks} {
		items, err := s.Collection(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%-16s %d\n", name, len(items))
	}
	return nil
}
