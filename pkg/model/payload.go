package model

// TaskPayload is the body sent to create or update a task.
type TaskPayload struct {
	ID        string   `json:"id,omitempty"`
	Title     string   `json:"title"`
	ProjectID string   `json:"projectId,omitempty"`
	Content   string   `json:"content,omitempty"`
	Desc      string   `json:"desc,omitempty"`
	AllDay    *bool    `json:"allDay,omitempty"`
	StartDate string   `json:"startDate,omitempty"`
	DueDate   string   `json:"dueDate,omitempty"`
	TimeZone  string   `json:"timeZone,omitempty"`
	Reminders []string `json:"reminders,omitempty"`
	Repeat    string   `json:"repeat,omitempty"`
	Priority  *int     `json:"priority,omitempty"`
	SortOrder *int64   `json:"sortOrder,omitempty"`
	Items     []Fields `json:"items,omitempty"`
}

// Task sort and tag sort types accepted by the service.
const (
	SortProject  = "project"
	SortDueDate  = "dueDate"
	SortTitle    = "title"
	SortPriority = "priority"
)

// SortType maps the numeric sort code 0..3 to its name.
func SortType(code int) (string, bool) {
	switch code {
	case 0:
		return SortProject, true
	case 1:
		return SortDueDate, true
	case 2:
		return SortTitle, true
	case 3:
		return SortPriority, true
	}
	return "", false
}

// TagPayload is the body of one tag in a batch/tag request.
type TagPayload struct {
	Label    string `json:"label"`
	Name     string `json:"name"`
	Color    string `json:"color,omitempty"`
	Parent   string `json:"parent,omitempty"`
	SortType string `json:"sortType"`
}

// Project kinds.
const (
	KindTask = "TASK"
	KindNote = "NOTE"
)

// ProjectPayload is the body of one project in a batch/project request.
type ProjectPayload struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Color   *string `json:"color"`
	Kind    string  `json:"kind"`
	GroupID *string `json:"groupId"`
}

// FolderPayload is the body of one folder in a batch/projectGroup request.
type FolderPayload struct {
	Name     string `json:"name"`
	ListType string `json:"listType"`
}

// NewFolder returns the payload for a project folder called name.
func NewFolder(name string) FolderPayload {
	return FolderPayload{Name: name, ListType: "group"}
}

// TaskRef identifies a task inside a project for batch delete requests.
type TaskRef struct {
	ProjectID string `json:"projectId"`
	TaskID    string `json:"taskId"`
}

// TaskParent assigns TaskID under ParentID.
type TaskParent struct {
	ParentID  string `json:"parentId"`
	ProjectID string `json:"projectId"`
	TaskID    string `json:"taskId"`
}

// TaskMove moves TaskID between projects.
type TaskMove struct {
	FromProjectID string `json:"fromProjectId"`
	TaskID        string `json:"taskId"`
	ToProjectID   string `json:"toProjectId"`
}
