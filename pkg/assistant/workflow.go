package assistant

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/attache/attache/pkg/fault"
	"github.com/attache/attache/pkg/model"
)

// AutoResult bundles the three-stage multi-model workflow output.
type AutoResult struct {
	Mode        string        `json:"mode"`
	Plan        string        `json:"plan"`
	Code        string        `json:"code"`
	Verify      string        `json:"verify"`
	ModelsUsed  []string      `json:"models_used"`
	FinalResult string        `json:"final_result"`
	Duration    time.Duration `json:"-"`
}

// autoStage describes one workflow stage: the routing hint it uses and how
// its prompt is built from the original task.
type autoStage struct {
	name   string
	hint   string
	prompt func(task string) string
}

var autoStages = []autoStage{
	{
		name: "plan",
		hint: "smart",
		prompt: func(task string) string {
			return fmt.Sprintf("Plan how to accomplish this task. Be concrete about the pieces and their order.\n\nTask: %s", task)
		},
	},
	{
		name: "code",
		hint: "coder",
		prompt: func(task string) string {
			return "Write the code that implements the plan above. Include everything needed to run it."
		},
	},
	{
		name: "verify",
		hint: "smart",
		prompt: func(task string) string {
			return "Review the code above against the plan. Point out bugs, gaps, or risks; say so explicitly if it looks correct."
		},
	},
}

// RunAuto fans one task through plan, code, and verify stages in sequence,
// threading the transcript so each stage sees its predecessors' output.
// Every stage is a full orchestrated run.
func (o *Orchestrator) RunAuto(ctx context.Context, task string) (*AutoResult, error) {
	start := time.Now()
	if strings.TrimSpace(task) == "" {
		return nil, fault.BadInput("task must not be empty")
	}

	result := &AutoResult{Mode: "multi-model", ModelsUsed: make([]string, 0, len(autoStages))}
	var history []model.Message
	var texts []string

	for _, stage := range autoStages {
		name := o.router.Select(stage.hint, model.ComplexityHigh, model.PriorityQuality)
		prompt := stage.prompt(task)

		runResult, err := o.Run(ctx, Request{
			Message: prompt,
			Model:   name,
			History: history,
		})
		if err != nil {
			o.recordTurn("multi-model", string(fault.KindOf(err)), start)
			return nil, err
		}

		history = append(history,
			model.Message{Role: model.RoleUser, Content: prompt},
			model.Message{Role: model.RoleAssistant, Content: runResult.Response},
		)
		texts = append(texts, runResult.Response)
		result.ModelsUsed = append(result.ModelsUsed, runResult.Model)
		o.log.InfoContext(ctx, "workflow stage finished",
			"stage", stage.name, "model", runResult.Model)
	}

	result.Plan, result.Code, result.Verify = texts[0], texts[1], texts[2]
	result.FinalResult = result.Code
	result.Duration = time.Since(start)
	o.recordTurn("multi-model", "success", start)
	return result, nil
}
