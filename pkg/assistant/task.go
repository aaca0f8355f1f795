package assistant

import (
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// TaskStatus is the lifecycle of one task. Status only moves forward:
// pending, in_progress, then exactly one of completed or failed.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
)

var taskStatusRank = map[TaskStatus]int{
	TaskPending:    0,
	TaskInProgress: 1,
	TaskCompleted:  2,
	TaskFailed:     2,
}

// Task is one orchestrated unit of work: a plan step plus its resolved tool
// action, lifecycle status, and outcome. ActionType is empty for pure LLM
// steps. Dependencies lists the task ids that must finish first; a linear
// plan chains each task to its predecessor.
type Task struct {
	ID           string         `json:"id"`
	Description  string         `json:"description"`
	ActionType   string         `json:"action_type,omitempty"`
	Parameters   map[string]any `json:"parameters,omitempty"`
	Dependencies []string       `json:"dependencies,omitempty"`
	Status       TaskStatus     `json:"status"`
	Result       any            `json:"result,omitempty"`
	Error        string         `json:"error,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// NewTask creates a pending task.
func NewTask(description string) *Task {
	now := time.Now().UTC()
	return &Task{
		ID:          ulid.Make().String(),
		Description: description,
		Status:      TaskPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// SetStatus applies a monotone status change. Moving backwards, or out of a
// terminal status, is an error.
func (t *Task) SetStatus(next TaskStatus) error {
	currentRank, ok := taskStatusRank[t.Status]
	if !ok {
		return fmt.Errorf("task %s has unknown status %q", t.ID, t.Status)
	}
	nextRank, ok := taskStatusRank[next]
	if !ok {
		return fmt.Errorf("unknown task status %q", next)
	}
	if nextRank <= currentRank {
		return fmt.Errorf("task status cannot move %s -> %s", t.Status, next)
	}
	t.Status = next
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// Complete marks the task completed with its result value.
func (t *Task) Complete(result any) error {
	if err := t.SetStatus(TaskCompleted); err != nil {
		return err
	}
	t.Result = result
	return nil
}

// Fail marks the task failed with its error text.
func (t *Task) Fail(message string) error {
	if err := t.SetStatus(TaskFailed); err != nil {
		return err
	}
	t.Error = message
	return nil
}

// Terminal reports whether the task reached completed or failed.
func (t *Task) Terminal() bool {
	return t.Status == TaskCompleted || t.Status == TaskFailed
}

// planTasks builds the task chain for a parsed plan, resolving each step's
// tool action through the intent table and chaining each task to its
// predecessor.
func planTasks(steps []string) []*Task {
	tasks := make([]*Task, 0, len(steps))
	for _, step := range steps {
		task := NewTask(step)
		if action, ok := mapStepToAction(step); ok {
			task.ActionType = action.Type
			task.Parameters = action.Parameters
		}
		if n := len(tasks); n > 0 {
			task.Dependencies = []string{tasks[n-1].ID}
		}
		tasks = append(tasks, task)
	}
	return tasks
}

// Outcome renders the task as a wire-level step outcome.
func (t *Task) Outcome() StepOutcome {
	outcome := StepOutcome{
		Step:    t.Description,
		Tool:    t.ActionType,
		Success: t.Status == TaskCompleted,
		Error:   t.Error,
	}
	if t.ActionType != "" {
		outcome.Output = t.Result
	} else if text, ok := t.Result.(string); ok {
		outcome.Text = text
	}
	return outcome
}

func planDescriptions(tasks []*Task) []string {
	if len(tasks) == 0 {
		return nil
	}
	out := make([]string, len(tasks))
	for i, task := range tasks {
		out[i] = task.Description
	}
	return out
}

func stepOutcomes(tasks []*Task) map[int]StepOutcome {
	out := make(map[int]StepOutcome, len(tasks))
	for i, task := range tasks {
		if task.Status == TaskPending {
			continue
		}
		out[i] = task.Outcome()
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
