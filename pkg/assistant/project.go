package assistant

import (
	"context"
	"fmt"
	"time"

	"github.com/attache/attache/pkg/tools/safety"
)

// Direct handles a request without the full phase machine when it matches a
// known direct pattern; anything else goes through Run.
func (o *Orchestrator) Direct(ctx context.Context, req Request) (*RunResult, error) {
	if name := projectName(req.Message); name != "" {
		return o.createProject(ctx, req, name)
	}
	return o.Run(ctx, req)
}

// createProject scaffolds workspace/<name> with a README and an entry-point
// file through the regular tool path, so the safety gate still applies.
func (o *Orchestrator) createProject(ctx context.Context, req Request, name string) (*RunResult, error) {
	start := time.Now()

	files := []struct {
		path    string
		content string
	}{
		{
			path:    name + "/README.md",
			content: fmt.Sprintf("# %s\n\nCreated by the assistant.\n", name),
		},
		{
			path: name + "/main.py",
			content: fmt.Sprintf("def main():\n    print(%q)\n\n\nif __name__ == \"__main__\":\n    main()\n",
				"hello from "+name),
		},
	}

	tasks := make([]*Task, 0, len(files)+1)
	var firstError string

	record := func(step, actionType string, params map[string]any) {
		task := NewTask(step)
		task.ActionType = actionType
		task.Parameters = params
		if n := len(tasks); n > 0 {
			task.Dependencies = []string{tasks[n-1].ID}
		}
		tasks = append(tasks, task)

		if err := task.SetStatus(TaskInProgress); err != nil {
			return
		}
		result := o.tools.Execute(ctx, safety.Action{
			Type:       actionType,
			Parameters: params,
			Source:     safety.SourceUser,
			Confirmed:  req.Confirmed,
		})
		if result.Success {
			task.Complete(result.Output)
			return
		}
		task.Fail(result.Error)
		if firstError == "" {
			firstError = result.Error
		}
	}

	record("create project folder "+name, "create_folder",
		map[string]any{"path": name})
	for _, file := range files {
		record("create "+file.path, "create_file",
			map[string]any{"path": file.path, "content": file.content})
	}

	response := fmt.Sprintf("Created project %q with README.md and main.py.", name)
	outcome := "success"
	if firstError != "" {
		response = fmt.Sprintf("Project creation hit an error: %s", firstError)
		outcome = "error"
	}
	o.recordTurn("direct", outcome, start)

	if o.memory != nil {
		if _, err := o.memory.AppendTurn(req.Message, response, "", nil); err != nil {
			o.log.WarnContext(ctx, "short-term append failed", "error", err.Error())
		}
	}

	return &RunResult{
		Response: response,
		Plan:     planDescriptions(tasks),
		Tasks:    tasks,
		Steps:    stepOutcomes(tasks),
		Duration: time.Since(start),
	}, nil
}
