package cli

import (
	"fmt"

	"github.com/harrisonrobin/tickmirror/pkg/model"
	"github.com/spf13/cobra"
)

var tagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "List and change tags",
}

var tagsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List mirrored tags",
	Args:  cobra.NoArgs,
	RunE:  runTagsList,
}

var tagsCreateCmd = &cobra.Command{
	Use:   "create <label>...",
	Short: "Create tags",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTagsCreate,
}

var tagsRenameCmd = &cobra.Command{
	Use:   "rename <old> <new>",
	Short: "Rename a tag",
	Args:  cobra.ExactArgs(2),
	RunE:  runTagsRename,
}

var tagsColorCmd = &cobra.Command{
	Use:   "color <label> <hex|random>",
	Short: "Set the color of a tag",
	Args:  cobra.ExactArgs(2),
	RunE:  runTagsColor,
}

var tagsNestCmd = &cobra.Command{
	Use:   "nest <child> [parent]",
	Short: "Nest a tag under another, or move it to the top level when no parent is given",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runTagsNest,
}

var tagsMergeCmd = &cobra.Command{
	Use:   "merge <kept> <label>...",
	Short: "Merge tags into one",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runTagsMerge,
}

var tagsDeleteCmd = &cobra.Command{
	Use:   "delete <label>...",
	Short: "Delete tags",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTagsDelete,
}

func init() {
	tagsCmd.AddCommand(tagsListCmd)
	tagsCmd.AddCommand(tagsCreateCmd)
	tagsCmd.AddCommand(tagsRenameCmd)
	tagsCmd.AddCommand(tagsColorCmd)
	tagsCmd.AddCommand(tagsNestCmd)
	tagsCmd.AddCommand(tagsMergeCmd)
	tagsCmd.AddCommand(tagsDeleteCmd)

	tagsCreateCmd.Flags().String("color", "", "Hex color or 'random'")
	tagsCreateCmd.Flags().String("parent", "", "Parent tag")
	tagsCreateCmd.Flags().Int("sort", 0, "Sort type: 0 project, 1 due date, 2 title, 3 priority")
}

func runTagsList(cmd *cobra.Command, args []string) error {
	client, err := connect(cmd.Context())
	if err != nil {
		return err
	}
	tags, err := client.Store().Collection(model.Tags)
	if err != nil {
		return err
	}
	renderTags(cmd.OutOrStdout(), tags)
	return nil
}

func runTagsCreate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	color, _ := cmd.Flags().GetString("color")
	parent, _ := cmd.Flags().GetString("parent")
	sort, _ := cmd.Flags().GetInt("sort")

	client, err := connect(ctx)
	if err != nil {
		return err
	}
	payloads := make([]model.TagPayload, 0, len(args))
	for _, label := range args {
		p, err := client.Tags.Builder(label, color, parent, sort)
		if err != nil {
			return err
		}
		payloads = append(payloads, p)
	}
	res, err := client.Tags.Create(ctx, payloads...)
	if err != nil {
		return err
	}
	renderTags(cmd.OutOrStdout(), res.All())
	return nil
}

func runTagsRename(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	client, err := connect(ctx)
	if err != nil {
		return err
	}
	tag, err := client.Tags.Rename(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Renamed %s to %s\n", args[0], tag.String("label"))
	return nil
}

func runTagsColor(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	client, err := connect(ctx)
	if err != nil {
		return err
	}
	tag, err := client.Tags.Color(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Tag %s is now %s\n", tag.Name(), tag.String("color"))
	return nil
}

func runTagsNest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	client, err := connect(ctx)
	if err != nil {
		return err
	}
	var parent *string
	if len(args) == 2 {
		parent = &args[1]
	}
	tag, err := client.Tags.Nesting(ctx, args[0], parent)
	if err != nil {
		return err
	}
	if p := tag.String("parent"); p != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Tag %s is under %s\n", tag.Name(), p)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Tag %s is at the top level\n", tag.Name())
	}
	return nil
}

func runTagsMerge(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	client, err := connect(ctx)
	if err != nil {
		return err
	}
	kept, err := client.Tags.Merge(ctx, args[1:], args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Merged %d tag(s) into %s\n", len(args)-1, kept.Name())
	return nil
}

func runTagsDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	client, err := connect(ctx)
	if err != nil {
		return err
	}
	res, err := client.Tags.Delete(ctx, args...)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d tag(s)\n", res.Len())
	return nil
}
