package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/harrisonrobin/tickmirror/pkg/model"
	"github.com/harrisonrobin/tickmirror/pkg/ticktick"
	"github.com/harrisonrobin/tickmirror/pkg/todo"
	"github.com/spf13/cobra"
)

var whenLayouts = []string{"2006-01-02", "2006-01-02 15:04", "2006-01-02T15:04", "2006-01-02T15:04:05"}

// parseWhen reads a wall clock time. The zone is applied later by the date builder.
func parseWhen(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	for _, layout := range whenLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("could not read %q as a date (use YYYY-MM-DD or YYYY-MM-DD HH:MM): %w", s, model.ErrInvalidArgument)
}

// decodeTasks reads task payloads from r, one JSON object after another.
func decodeTasks(r io.Reader) ([]model.TaskPayload, error) {
	var tasks []model.TaskPayload
	decoder := json.NewDecoder(r)
	for {
		var task model.TaskPayload
		if err := decoder.Decode(&task); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to decode task json: %w", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func lookupTask(client *ticktick.Client, id string) (model.Entity, error) {
	task, err := client.Store().QueryByID(id, model.Tasks)
	if err != nil {
		return nil, err
	}
	if task.Empty() {
		return nil, fmt.Errorf("task %s: %w", id, model.ErrNotFound)
	}
	return task, nil
}

func lookupTasks(client *ticktick.Client, ids []string) ([]model.Entity, error) {
	tasks := make([]model.Entity, 0, len(ids))
	for _, id := range ids {
		task, err := lookupTask(client, id)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List and change tasks",
}

var tasksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List mirrored tasks",
	Args:  cobra.NoArgs,
	RunE:  runTasksList,
}

var tasksCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a task, or a batch of tasks read as JSON from stdin",
	Args:  cobra.NoArgs,
	RunE:  runTasksCreate,
}

var tasksUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Change the title, content or priority of a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTasksUpdate,
}

var tasksCompleteCmd = &cobra.Command{
	Use:   "complete <id>",
	Short: "Mark a task as done",
	Args:  cobra.ExactArgs(1),
	RunE:  runTasksComplete,
}

var tasksDeleteCmd = &cobra.Command{
	Use:   "delete <id>...",
	Short: "Delete tasks",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTasksDelete,
}

var tasksMoveCmd = &cobra.Command{
	Use:   "move <project> <id>...",
	Short: "Move tasks of one project into another (use 'inbox' for the inbox)",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runTasksMove,
}

var tasksMoveAllCmd = &cobra.Command{
	Use:   "move-all <from> <to>",
	Short: "Move every task of a project into another",
	Args:  cobra.ExactArgs(2),
	RunE:  runTasksMoveAll,
}

var tasksSubtaskCmd = &cobra.Command{
	Use:   "subtask <parent> <id>...",
	Short: "Nest tasks under a parent task of the same project",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runTasksSubtask,
}

var tasksCompletedCmd = &cobra.Command{
	Use:   "completed <from> [to]",
	Short: "List tasks completed in a window (the whole day when only <from> is given)",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runTasksCompleted,
}

func init() {
	tasksCmd.AddCommand(tasksListCmd)
	tasksCmd.AddCommand(tasksCreateCmd)
	tasksCmd.AddCommand(tasksUpdateCmd)
	tasksCmd.AddCommand(tasksCompleteCmd)
	tasksCmd.AddCommand(tasksDeleteCmd)
	tasksCmd.AddCommand(tasksMoveCmd)
	tasksCmd.AddCommand(tasksMoveAllCmd)
	tasksCmd.AddCommand(tasksSubtaskCmd)
	tasksCmd.AddCommand(tasksCompletedCmd)

	tasksListCmd.Flags().String("project", "", "Only list tasks of this project id ('inbox' for the inbox)")
	tasksListCmd.Flags().Bool("todo", false, "Show projects as to-do lists")

	f := tasksCreateCmd.Flags()
	f.String("title", "", "Task title")
	f.String("project", "", "Project id (default inbox)")
	f.String("content", "", "Task notes")
	f.String("start", "", "Start date, YYYY-MM-DD or YYYY-MM-DD HH:MM")
	f.String("due", "", "Due date, YYYY-MM-DD or YYYY-MM-DD HH:MM")
	f.String("tz", "", "Time zone of start and due (default account zone)")
	f.Int("priority", ticktick.PriorityNone, "Priority: 0 none, 1 low, 3 medium, 5 high")
	f.Bool("stdin", false, "Read task payloads as JSON objects from stdin and create them in one batch")

	tasksUpdateCmd.Flags().String("title", "", "New title")
	tasksUpdateCmd.Flags().String("content", "", "New notes")
	tasksUpdateCmd.Flags().Int("priority", -1, "New priority")

	tasksCompletedCmd.Flags().Bool("full", false, "Widen both ends to whole days")
	tasksCompletedCmd.Flags().String("tz", "", "Time zone of the window (default account zone)")
}

func runTasksList(cmd *cobra.Command, args []string) error {
	client, err := connect(cmd.Context())
	if err != nil {
		return err
	}
	projects, err := client.Store().Collection(model.Projects)
	if err != nil {
		return err
	}

	var tasks []model.Entity
	if project, _ := cmd.Flags().GetString("project"); project != "" {
		res, err := client.Tasks.GetFromProject(project)
		if err != nil {
			return err
		}
		tasks = res.All()
	} else if tasks, err = client.Store().Collection(model.Tasks); err != nil {
		return err
	}

	if asTodo, _ := cmd.Flags().GetBool("todo"); asTodo {
		loc, err := time.LoadLocation(client.TimeZone())
		if err != nil {
			loc = time.Local
		}
		all := append([]model.Entity{{"id": client.InboxID(), "name": "Inbox"}}, projects...)
		lists, err := todo.Lists(all, tasks, loc)
		renderLists(cmd.OutOrStdout(), lists)
		return err
	}
	renderTasks(cmd.OutOrStdout(), tasks, projectNames(projects, client.InboxID()))
	return nil
}

func runTasksCreate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	f := cmd.Flags()

	if batch, _ := f.GetBool("stdin"); batch {
		payloads, err := decodeTasks(cmd.InOrStdin())
		if err != nil {
			return err
		}
		if len(payloads) == 0 {
			return nil
		}
		client, err := connect(ctx)
		if err != nil {
			return err
		}
		res, err := client.Tasks.CreateBatch(ctx, payloads...)
		if err != nil {
			return err
		}
		renderTasks(cmd.OutOrStdout(), res.All(), nil)
		return nil
	}

	title, _ := f.GetString("title")
	project, _ := f.GetString("project")
	content, _ := f.GetString("content")
	tz, _ := f.GetString("tz")
	priority, _ := f.GetInt("priority")
	startRaw, _ := f.GetString("start")
	dueRaw, _ := f.GetString("due")
	start, err := parseWhen(startRaw)
	if err != nil {
		return err
	}
	due, err := parseWhen(dueRaw)
	if err != nil {
		return err
	}

	client, err := connect(ctx)
	if err != nil {
		return err
	}
	payload, err := client.Tasks.Builder(ticktick.TaskSpec{
		Title:     title,
		ProjectID: project,
		Content:   content,
		Start:     start,
		Due:       due,
		TimeZone:  tz,
		Priority:  priority,
	})
	if err != nil {
		return err
	}
	task, err := client.Tasks.Create(ctx, payload)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created %s %q\n", task.ID(), task.Title())
	return nil
}

func runTasksUpdate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	client, err := connect(ctx)
	if err != nil {
		return err
	}
	task, err := lookupTask(client, args[0])
	if err != nil {
		return err
	}
	task = task.Clone()

	f := cmd.Flags()
	if f.Changed("title") {
		task["title"], _ = f.GetString("title")
	}
	if f.Changed("content") {
		task["content"], _ = f.GetString("content")
	}
	if f.Changed("priority") {
		p, _ := f.GetInt("priority")
		switch p {
		case ticktick.PriorityNone, ticktick.PriorityLow, ticktick.PriorityMedium, ticktick.PriorityHigh:
		default:
			return fmt.Errorf("priority %d is not one of 0, 1, 3, 5: %w", p, model.ErrInvalidArgument)
		}
		task["priority"] = p
	}
	updated, err := client.Tasks.Update(ctx, task)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Updated %s %q\n", updated.ID(), updated.Title())
	return nil
}

func runTasksComplete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	client, err := connect(ctx)
	if err != nil {
		return err
	}
	task, err := lookupTask(client, args[0])
	if err != nil {
		return err
	}
	if _, err := client.Tasks.Complete(ctx, task); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Completed %s %q\n", task.ID(), task.Title())
	return nil
}

func runTasksDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	client, err := connect(ctx)
	if err != nil {
		return err
	}
	tasks, err := lookupTasks(client, args)
	if err != nil {
		return err
	}
	res, err := client.Tasks.Delete(ctx, tasks...)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d task(s)\n", res.Len())
	return nil
}

func runTasksMove(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	client, err := connect(ctx)
	if err != nil {
		return err
	}
	tasks, err := lookupTasks(client, args[1:])
	if err != nil {
		return err
	}
	res, err := client.Tasks.Move(ctx, tasks, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Moved %d task(s)\n", res.Len())
	return nil
}

func runTasksMoveAll(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	client, err := connect(ctx)
	if err != nil {
		return err
	}
	res, err := client.Tasks.MoveAll(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Moved %d task(s)\n", res.Len())
	return nil
}

func runTasksSubtask(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	client, err := connect(ctx)
	if err != nil {
		return err
	}
	tasks, err := lookupTasks(client, args[1:])
	if err != nil {
		return err
	}
	res, err := client.Tasks.MakeSubtask(ctx, tasks, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Nested %d task(s) under %s\n", res.Len(), args[0])
	return nil
}

func runTasksCompleted(cmd *cobra.Command, args []string) error {
	start, err := parseWhen(args[0])
	if err != nil {
		return err
	}
	var end *time.Time
	if len(args) == 2 {
		if end, err = parseWhen(args[1]); err != nil {
			return err
		}
	}
	full, _ := cmd.Flags().GetBool("full")
	tz, _ := cmd.Flags().GetString("tz")

	ctx := cmd.Context()
	client, err := connect(ctx)
	if err != nil {
		return err
	}
	tasks, err := client.Tasks.GetCompleted(ctx, *start, end, full, tz)
	if err != nil {
		return err
	}
	projects, err := client.Store().Collection(model.Projects)
	if err != nil {
		return err
	}
	renderTasks(cmd.OutOrStdout(), tasks, projectNames(projects, client.InboxID()))
	return nil
}
