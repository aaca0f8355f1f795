package assistant

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/attache/attache/config"
	"github.com/attache/attache/pkg/fault"
	"github.com/attache/attache/pkg/logger"
	"github.com/attache/attache/pkg/memory"
	"github.com/attache/attache/pkg/model"
	"github.com/attache/attache/pkg/tools"
	"github.com/attache/attache/pkg/tools/safety"

	"github.com/oklog/ulid/v2"
)

// ClarificationMarker is the token a model emits when it cannot proceed
// without more information from the user.
const ClarificationMarker = "NEED_MORE_INFO"

// TurnObserver receives per-turn telemetry. Implemented by the metrics
// manager; nil is allowed.
type TurnObserver interface {
	RecordChatTurn(mode, outcome string, duration time.Duration)
}

// Orchestrator drives one user request through the phase machine.
type Orchestrator struct {
	router   *model.Router
	tools    *tools.Executor
	memory   *memory.Store
	limits   config.LimitsConfig
	log      logger.Logger
	observer TurnObserver
}

// Options holds Orchestrator construction parameters.
type Options struct {
	Router   *model.Router
	Tools    *tools.Executor
	Memory   *memory.Store
	Limits   config.LimitsConfig
	Logger   logger.Logger
	Observer TurnObserver
}

// New builds an Orchestrator. Router and tool executor are required; memory
// is optional (runs then skip recall and reflection writes).
func New(opts Options) (*Orchestrator, error) {
	if opts.Router == nil {
		return nil, fmt.Errorf("orchestrator requires a router")
	}
	if opts.Tools == nil {
		return nil, fmt.Errorf("orchestrator requires a tool executor")
	}
	log := opts.Logger
	if log == nil {
		log = logger.Global()
	}
	limits := opts.Limits
	if limits.MaxPlanSteps <= 0 {
		limits.MaxPlanSteps = 10
	}
	if limits.MaxStepErrors <= 0 {
		limits.MaxStepErrors = 3
	}
	return &Orchestrator{
		router:   opts.Router,
		tools:    opts.Tools,
		memory:   opts.Memory,
		limits:   limits,
		log:      log,
		observer: opts.Observer,
	}, nil
}

// Request is one user turn handed to the Orchestrator.
type Request struct {
	// Message is the raw user input.
	Message string

	// Model overrides automatic selection when non-empty.
	Model string

	// UseMemory enables recall and reflection writes for this turn.
	UseMemory bool

	// History is prior conversation threaded into every model call.
	History []model.Message

	// Confirmed is the caller's confirmation for dangerous tool actions.
	Confirmed bool
}

// StepOutcome records one executed plan step.
type StepOutcome struct {
	Step    string `json:"step"`
	Tool    string `json:"tool,omitempty"`
	Success bool   `json:"success"`
	Output  any    `json:"output,omitempty"`
	Text    string `json:"text,omitempty"`
	Error   string `json:"error,omitempty"`
}

// RunResult is the outcome of one orchestrated turn.
type RunResult struct {
	Response           string              `json:"response"`
	Model              string              `json:"model_used"`
	Plan               []string            `json:"plan,omitempty"`
	Tasks              []*Task             `json:"tasks,omitempty"`
	Steps              map[int]StepOutcome `json:"steps,omitempty"`
	NeedsClarification bool                `json:"needs_clarification,omitempty"`
	Duration           time.Duration       `json:"-"`
}

// run is the mutable state of one request moving through the phases.
type run struct {
	req                Request
	phase              Phase
	recall             memory.RecallBundle
	understanding      string
	modelUsed          string
	tasks              []*Task
	stepIndex          int
	errorCount         int
	firstError         string
	backendError       string
	needsClarification bool
	response           string
}

// Run executes the full phase machine for one request. Tool and backend
// failures are captured in the result; only bad input and invariant
// violations return an error.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*RunResult, error) {
	start := time.Now()
	if strings.TrimSpace(req.Message) == "" {
		return nil, fault.BadInput("message must not be empty")
	}

	if o.limits.RequestBudget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.limits.RequestBudget)
		defer cancel()
	}

	r := &run{req: req, phase: PhaseUnderstand}

	for !r.phase.IsTerminal() {
		next, err := o.step(ctx, r)
		if err != nil {
			o.recordTurn("agent", string(fault.KindOf(err)), start)
			return nil, err
		}
		if err := ValidateTransition(r.phase, next); err != nil {
			o.recordTurn("agent", string(fault.KindFatal), start)
			return nil, fault.Fatal("%v", err)
		}
		o.log.DebugContext(ctx, "phase transition", "from", r.phase.String(), "to", next.String())
		r.phase = next
	}

	outcome := "success"
	if r.firstError != "" || r.backendError != "" {
		outcome = "error"
	} else if r.needsClarification {
		outcome = "clarification"
	}
	o.recordTurn("agent", outcome, start)

	return &RunResult{
		Response:           r.response,
		Model:              r.modelUsed,
		Plan:               planDescriptions(r.tasks),
		Tasks:              r.tasks,
		Steps:              stepOutcomes(r.tasks),
		NeedsClarification: r.needsClarification,
		Duration:           time.Since(start),
	}, nil
}

func (o *Orchestrator) step(ctx context.Context, r *run) (Phase, error) {
	switch r.phase {
	case PhaseUnderstand:
		return o.understand(ctx, r)
	case PhasePlan:
		return o.plan(ctx, r)
	case PhaseExecute:
		return o.execute(ctx, r)
	case PhaseVerify:
		return o.verify(r)
	case PhaseReflect:
		return o.reflect(ctx, r)
	default:
		return PhaseDone, fault.Fatal("no handler for phase %s", r.phase)
	}
}

// understand retrieves memory, asks a model to interpret the request, and
// detects clarification requests.
func (o *Orchestrator) understand(ctx context.Context, r *run) (Phase, error) {
	// Re-entry after the error ceiling: nothing more to ask, summarize.
	if r.needsClarification {
		return PhaseReflect, nil
	}

	if r.req.UseMemory && o.memory != nil {
		bundle, err := o.memory.Recall(ctx, r.req.Message)
		if err != nil {
			o.log.WarnContext(ctx, "memory recall failed", "error", err.Error())
		} else {
			r.recall = bundle
		}
	}

	name := r.req.Model
	if name == "" {
		name = o.router.SelectForMessage(r.req.Message)
	}

	text, used, err := o.router.Invoke(ctx, name, o.understandMessages(r), model.Options{})
	if err != nil {
		if fault.KindOf(err) == fault.KindBadInput {
			return PhaseDone, err
		}
		r.backendError = err.Error()
		o.log.WarnContext(ctx, "understand model call failed", "model", name, "error", err.Error())
		return PhaseReflect, nil
	}

	r.modelUsed = used
	r.understanding = text
	if strings.Contains(text, ClarificationMarker) {
		r.needsClarification = true
		return PhaseReflect, nil
	}
	return PhasePlan, nil
}

// plan asks a high-complexity model for a numbered step list.
func (o *Orchestrator) plan(ctx context.Context, r *run) (Phase, error) {
	name := o.router.Select(r.req.Message, model.ComplexityHigh, model.PriorityQuality)

	prompt := fmt.Sprintf(
		"Break this request into a numbered plan of at most %d concrete steps. "+
			"Reply with only the numbered list. If the request needs no steps beyond "+
			"a direct answer, reply with the single word NONE.\n\nRequest: %s",
		o.limits.MaxPlanSteps, r.req.Message)

	text, _, err := o.router.Invoke(ctx, name,
		append(cloneHistory(r.req.History), model.Message{Role: model.RoleUser, Content: prompt}),
		model.Options{})
	if err != nil {
		r.backendError = err.Error()
		o.log.WarnContext(ctx, "plan model call failed", "model", name, "error", err.Error())
		return PhaseReflect, nil
	}

	r.tasks = planTasks(parsePlan(text, o.limits.MaxPlanSteps))
	if len(r.tasks) == 0 {
		return PhaseReflect, nil
	}
	return PhaseExecute, nil
}

// execute runs the current task: its mapped tool action, or a model call for
// pure LLM steps. Failures are captured on the task, never raised.
func (o *Orchestrator) execute(ctx context.Context, r *run) (Phase, error) {
	task := r.tasks[r.stepIndex]
	if err := task.SetStatus(TaskInProgress); err != nil {
		return PhaseDone, fault.Fatal("%v", err)
	}

	if task.ActionType != "" {
		result := o.tools.Execute(ctx, safety.Action{
			Type:       task.ActionType,
			Parameters: task.Parameters,
			Source:     safety.SourceAgent,
			Confirmed:  r.req.Confirmed,
		})
		var terr error
		if result.Success {
			terr = task.Complete(result.Output)
		} else {
			terr = task.Fail(result.Error)
		}
		if terr != nil {
			return PhaseDone, fault.Fatal("%v", terr)
		}
		return PhaseVerify, nil
	}

	name := o.router.Select(task.Description, model.ComplexityMed, model.PriorityQuality)
	messages := append(cloneHistory(r.req.History),
		model.Message{Role: model.RoleUser, Content: fmt.Sprintf(
			"As part of handling %q, perform this step and report the result:\n%s",
			r.req.Message, task.Description)})

	text, _, err := o.router.Invoke(ctx, name, messages, model.Options{})
	var terr error
	if err != nil {
		terr = task.Fail(err.Error())
	} else {
		terr = task.Complete(text)
	}
	if terr != nil {
		return PhaseDone, fault.Fatal("%v", terr)
	}
	return PhaseVerify, nil
}

// verify inspects the last task and decides whether to continue, abort to a
// clarification, or move to reflection.
func (o *Orchestrator) verify(r *run) (Phase, error) {
	last := r.tasks[r.stepIndex]
	if last.Status == TaskCompleted {
		r.errorCount = 0
	} else {
		r.errorCount++
		if r.firstError == "" {
			r.firstError = last.Error
		}
	}

	if r.errorCount >= o.limits.MaxStepErrors {
		r.needsClarification = true
		return PhaseUnderstand, nil
	}
	if r.stepIndex+1 < len(r.tasks) {
		r.stepIndex++
		return PhaseExecute, nil
	}
	return PhaseReflect, nil
}

// reflect stores patterns in long-term memory, appends the turn to the
// short-term log, and composes the final response.
func (o *Orchestrator) reflect(ctx context.Context, r *run) (Phase, error) {
	r.response = o.composeResponse(r)

	if o.memory != nil && r.req.UseMemory {
		o.storePatterns(ctx, r)
	}
	if o.memory != nil {
		if _, err := o.memory.AppendTurn(r.req.Message, r.response, r.modelUsed, nil); err != nil {
			o.log.WarnContext(ctx, "short-term append failed", "error", err.Error())
		}
	}
	return PhaseDone, nil
}

func (o *Orchestrator) storePatterns(ctx context.Context, r *run) {
	succeeded := len(r.tasks) > 0 && r.firstError == "" && !r.needsClarification

	if succeeded {
		successes, err := o.memory.Collection(memory.CollectionSuccesses)
		if err == nil {
			text := fmt.Sprintf("request %q completed via plan: %s",
				r.req.Message, strings.Join(planDescriptions(r.tasks), "; "))
			if err := successes.Add(ctx, ulid.Make().String(), text,
				map[string]string{"model": r.modelUsed}); err != nil {
				o.log.WarnContext(ctx, "success pattern write failed", "error", err.Error())
			}
		}
		return
	}

	failure := r.firstError
	if failure == "" {
		failure = r.backendError
	}
	if failure == "" {
		return
	}
	failures, err := o.memory.Collection(memory.CollectionFailures)
	if err == nil {
		text := fmt.Sprintf("request %q failed: %s", r.req.Message, failure)
		if err := failures.Add(ctx, ulid.Make().String(), text, nil); err != nil {
			o.log.WarnContext(ctx, "failure pattern write failed", "error", err.Error())
		}
	}
}

func (o *Orchestrator) composeResponse(r *run) string {
	if r.needsClarification {
		base := strings.TrimSpace(strings.ReplaceAll(r.understanding, ClarificationMarker, ""))
		if r.firstError != "" {
			return fmt.Sprintf(
				"I ran into repeated errors and need your guidance to continue. Last error: %s", r.firstError)
		}
		if base != "" {
			return base
		}
		return "I need more information to help with that. Could you add some detail?"
	}

	if r.backendError != "" && r.understanding == "" {
		return fmt.Sprintf("I could not reach a model backend for this request (%s). Please try again.", r.backendError)
	}

	if len(r.tasks) == 0 {
		return r.understanding
	}

	var b strings.Builder
	b.WriteString(strings.TrimSpace(r.understanding))
	b.WriteString("\n\nSteps:\n")
	for i, task := range r.tasks {
		switch {
		case task.Status == TaskPending:
			fmt.Fprintf(&b, "%d. %s: skipped\n", i+1, task.Description)
		case task.Status == TaskFailed:
			fmt.Fprintf(&b, "%d. %s: failed, %s\n", i+1, task.Description, task.Error)
		default:
			text, _ := task.Result.(string)
			if task.ActionType == "" && text != "" {
				fmt.Fprintf(&b, "%d. %s: done, %s\n", i+1, task.Description, text)
			} else {
				fmt.Fprintf(&b, "%d. %s: done\n", i+1, task.Description)
			}
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// understandMessages builds the prompt for the understand phase: recalled
// memory as a labeled system preamble, prior history, then the user message.
func (o *Orchestrator) understandMessages(r *run) []model.Message {
	system := fmt.Sprintf(
		"You are a personal assistant. Interpret the user's request and answer it. "+
			"If you genuinely cannot proceed without more information, include the token %s.",
		ClarificationMarker)

	if !r.recall.Empty() {
		var b strings.Builder
		b.WriteString(system)
		b.WriteString("\n\nRelevant memory:\n")
		if len(r.recall.Conversations) > 0 {
			b.WriteString("Recent conversations:\n")
			for _, record := range r.recall.Conversations {
				fmt.Fprintf(&b, "- user: %s / assistant: %s\n", record.UserMessage, record.AssistantReply)
			}
		}
		writeDocs := func(label string, docs []memory.Document) {
			if len(docs) == 0 {
				return
			}
			b.WriteString(label + ":\n")
			for _, doc := range docs {
				fmt.Fprintf(&b, "- %s\n", doc.Text)
			}
		}
		writeDocs("Past successes", r.recall.Successes)
		writeDocs("Past failures", r.recall.Failures)
		writeDocs("Preferences", r.recall.Preferences)
		writeDocs("Personal facts", r.recall.PersonalFacts)
		system = b.String()
	}

	messages := []model.Message{{Role: model.RoleSystem, Content: system}}
	messages = append(messages, cloneHistory(r.req.History)...)
	return append(messages, model.Message{Role: model.RoleUser, Content: r.req.Message})
}

func (o *Orchestrator) recordTurn(mode, outcome string, start time.Time) {
	if o.observer != nil {
		o.observer.RecordChatTurn(mode, outcome, time.Since(start))
	}
}

func cloneHistory(history []model.Message) []model.Message {
	out := make([]model.Message, len(history))
	copy(out, history)
	return out
}
