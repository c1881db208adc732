package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/harrisonrobin/tickmirror/pkg/model"
	"github.com/harrisonrobin/tickmirror/pkg/todo"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	idStyle     = lipgloss.NewStyle().Faint(true).Width(26)
	nameStyle   = lipgloss.NewStyle().Width(32)
	doneStyle   = lipgloss.NewStyle().Strikethrough(true).Faint(true)
	dueStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

func row(id, name, rest string) string {
	return strings.TrimRight(idStyle.Render(id)+nameStyle.Render(name)+rest, " ")
}

func renderTasks(w io.Writer, tasks []model.Entity, projects map[string]string) {
	sorted := append([]model.Entity(nil), tasks...)
	sort.SliceStable(sorted, func(i, j int) bool {
		pi, pj := projects[sorted[i].Project()], projects[sorted[j].Project()]
		if pi != pj {
			return pi < pj
		}
		return sorted[i].Title() < sorted[j].Title()
	})

	fmt.Fprintln(w, headerStyle.Render(row("ID", "TITLE", "PROJECT / DUE")))
	for _, t := range sorted {
		title := t.Title()
		if model.Equal(t["status"], 2) {
			title = doneStyle.Render(title)
		}
		rest := projects[t.Project()]
		if due := t.String("dueDate"); due != "" {
			rest += " " + dueStyle.Render(due)
		}
		fmt.Fprintln(w, row(t.ID(), title, rest))
	}
}

func renderTags(w io.Writer, tags []model.Entity) {
	fmt.Fprintln(w, headerStyle.Render(row("NAME", "LABEL", "COLOR / PARENT")))
	for _, t := range tags {
		rest := t.String("color")
		if parent := t.String("parent"); parent != "" {
			rest += " ⊂ " + parent
		}
		fmt.Fprintln(w, row(t.Name(), t.String("label"), rest))
	}
}

func renderProjects(w io.Writer, projects, folders []model.Entity) {
	folderNames := make(map[string]string, len(folders))
	for _, f := range folders {
		folderNames[f.ID()] = f.Name()
	}
	fmt.Fprintln(w, headerStyle.Render(row("ID", "NAME", "FOLDER / STATE")))
	for _, p := range projects {
		rest := folderNames[p.String("groupId")]
		if closed, _ := p["closed"].(bool); closed {
			rest += " archived"
		}
		fmt.Fprintln(w, row(p.ID(), p.Name(), rest))
	}
}

func renderLists(w io.Writer, lists []todo.List) {
	for _, l := range lists {
		fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%s (%d)", l.Name, len(l.Items))))
		for _, item := range l.Items {
			mark := "[ ]"
			summary := item.Summary
			if item.Status == todo.Completed {
				mark = "[x]"
				summary = doneStyle.Render(summary)
			}
			line := "  " + mark + " " + summary
			if item.Due != nil {
				line += " " + dueStyle.Render(item.Due.Format("2006-01-02"))
			}
			fmt.Fprintln(w, line)
		}
	}
}

// projectNames maps project ids to names, the inbox included.
func projectNames(projects []model.Entity, inboxID string) map[string]string {
	names := map[string]string{inboxID: "Inbox"}
	for _, p := range projects {
		names[p.ID()] = p.Name()
	}
	return names
}
