package cli

import (
	"fmt"

	"github.com/harrisonrobin/tickmirror/pkg/model"
	"github.com/spf13/cobra"
)

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List and change projects and folders",
}

var projectsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List mirrored projects",
	Args:  cobra.NoArgs,
	RunE:  runProjectsList,
}

var projectsCreateCmd = &cobra.Command{
	Use:   "create <name>...",
	Short: "Create projects",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runProjectsCreate,
}

var projectsArchiveCmd = &cobra.Command{
	Use:   "archive <id>...",
	Short: "Archive projects",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runProjectsArchive,
}

var projectsDeleteCmd = &cobra.Command{
	Use:   "delete <id>...",
	Short: "Delete projects and their tasks",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runProjectsDelete,
}

var foldersCmd = &cobra.Command{
	Use:   "folders",
	Short: "Manage project folders",
}

var foldersCreateCmd = &cobra.Command{
	Use:   "create <name>...",
	Short: "Create folders",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runFoldersCreate,
}

var foldersDeleteCmd = &cobra.Command{
	Use:   "delete <id>...",
	Short: "Delete folders",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runFoldersDelete,
}

func init() {
	projectsCmd.AddCommand(projectsListCmd)
	projectsCmd.AddCommand(projectsCreateCmd)
	projectsCmd.AddCommand(projectsArchiveCmd)
	projectsCmd.AddCommand(projectsDeleteCmd)
	projectsCmd.AddCommand(foldersCmd)
	foldersCmd.AddCommand(foldersCreateCmd)
	foldersCmd.AddCommand(foldersDeleteCmd)

	projectsCreateCmd.Flags().String("color", "", "Hex color or 'random'")
	projectsCreateCmd.Flags().String("kind", model.KindTask, "TASK or NOTE")
	projectsCreateCmd.Flags().String("folder", "", "Folder id")
}

func runProjectsList(cmd *cobra.Command, args []string) error {
	client, err := connect(cmd.Context())
	if err != nil {
		return err
	}
	projects, err := client.Store().Collection(model.Projects)
	if err != nil {
		return err
	}
	folders, err := client.Store().Collection(model.ProjectFolders)
	if err != nil {
		return err
	}
	renderProjects(cmd.OutOrStdout(), projects, folders)
	return nil
}

func runProjectsCreate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	color, _ := cmd.Flags().GetString("color")
	kind, _ := cmd.Flags().GetString("kind")
	folder, _ := cmd.Flags().GetString("folder")

	client, err := connect(ctx)
	if err != nil {
		return err
	}
	payloads := make([]model.ProjectPayload, 0, len(args))
	for _, name := range args {
		p, err := client.Projects.Builder(name, color, kind, folder)
		if err != nil {
			return err
		}
		payloads = append(payloads, p)
	}
	res, err := client.Projects.Create(ctx, payloads...)
	if err != nil {
		return err
	}
	folders, _ := client.Store().Collection(model.ProjectFolders)
	renderProjects(cmd.OutOrStdout(), res.All(), folders)
	return nil
}

func runProjectsArchive(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	client, err := connect(ctx)
	if err != nil {
		return err
	}
	res, err := client.Projects.Archive(ctx, args...)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Archived %d project(s)\n", res.Len())
	return nil
}

func runProjectsDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	client, err := connect(ctx)
	if err != nil {
		return err
	}
	res, err := client.Projects.Delete(ctx, args...)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d project(s)\n", res.Len())
	return nil
}

func runFoldersCreate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	client, err := connect(ctx)
	if err != nil {
		return err
	}
	res, err := client.Projects.CreateFolder(ctx, args...)
	if err != nil {
		return err
	}
	for _, f := range res.All() {
		fmt.Fprintf(cmd.OutOrStdout(), "Created folder %s %q\n", f.ID(), f.Name())
	}
	return nil
}

func runFoldersDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	client, err := connect(ctx)
	if err != nil {
		return err
	}
	res, err := client.Projects.DeleteFolder(ctx, args...)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d folder(s)\n", res.Len())
	return nil
}
