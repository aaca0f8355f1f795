// Package handlers provides HTTP request handlers.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/attache/attache/pkg/api/middleware"
	"github.com/attache/attache/pkg/api/response"
	"github.com/attache/attache/pkg/assistant"
	"github.com/attache/attache/pkg/logger"
	"github.com/attache/attache/pkg/model"
)

// ChatRequest is the POST /api/chat request body.
type ChatRequest struct {
	Message             string          `json:"message" validate:"required"`
	Model               string          `json:"model,omitempty"`
	UseMemory           bool            `json:"use_memory,omitempty"`
	ConversationHistory []model.Message `json:"conversation_history,omitempty"`
	Confirmed           bool            `json:"confirmed,omitempty"`
}

// ChatResponse is the POST /api/chat response body.
type ChatResponse struct {
	Response           string                        `json:"response"`
	ModelUsed          string                        `json:"model_used"`
	Duration           float64                       `json:"duration"`
	NeedsClarification bool                          `json:"needs_clarification,omitempty"`
	Plan               []string                      `json:"plan,omitempty"`
	Steps              map[int]assistant.StepOutcome `json:"steps,omitempty"`
}

// AutoRequest is the POST /api/chat/auto request body.
type AutoRequest struct {
	Task    string `json:"task" validate:"required"`
	Verbose bool   `json:"verbose,omitempty"`
}

// AutoResponse is the POST /api/chat/auto response body.
type AutoResponse struct {
	Mode        string   `json:"mode"`
	ModelsUsed  []string `json:"models_used"`
	FinalResult string   `json:"final_result"`
	Plan        string   `json:"plan"`
	Code        string   `json:"code"`
	Verify      string   `json:"verify"`
	Duration    float64  `json:"duration"`
}

// ChatHandler handles the chat endpoints.
type ChatHandler struct {
	orchestrator *assistant.Orchestrator
	logger       logger.Logger
	validator    *validator.Validate
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(o *assistant.Orchestrator, log logger.Logger) *ChatHandler {
	return &ChatHandler{
		orchestrator: o,
		logger:       log,
		validator:    validator.New(),
	}
}

// Chat handles POST /api/chat. A completed turn is always 200, even when the
// turn's text reports tool or backend failures; only malformed input and
// internal invariant violations map to non-200.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest, "Invalid request body", getRequestID(ctx))
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		response.Error(w, http.StatusBadRequest, response.ErrCodeValidationFailed, err.Error(), getRequestID(ctx))
		return
	}

	result, err := h.orchestrator.Run(ctx, assistant.Request{
		Message:   req.Message,
		Model:     req.Model,
		UseMemory: req.UseMemory,
		History:   req.ConversationHistory,
		Confirmed: req.Confirmed,
	})
	if err != nil {
		h.logger.Error("Chat turn failed", "error", err)
		response.HandleError(w, err, getRequestID(ctx))
		return
	}

	response.JSON(w, http.StatusOK, chatResponseFrom(result))
}

// Auto handles POST /api/chat/auto, the plan/code/verify workflow.
func (h *ChatHandler) Auto(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req AutoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest, "Invalid request body", getRequestID(ctx))
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		response.Error(w, http.StatusBadRequest, response.ErrCodeValidationFailed, err.Error(), getRequestID(ctx))
		return
	}

	result, err := h.orchestrator.RunAuto(ctx, req.Task)
	if err != nil {
		h.logger.Error("Multi-model workflow failed", "error", err)
		response.HandleError(w, err, getRequestID(ctx))
		return
	}

	if req.Verbose {
		h.logger.Info("Workflow transcript",
			"plan", result.Plan, "code", result.Code, "verify", result.Verify)
	}
	response.JSON(w, http.StatusOK, AutoResponse{
		Mode:        result.Mode,
		ModelsUsed:  result.ModelsUsed,
		FinalResult: result.FinalResult,
		Plan:        result.Plan,
		Code:        result.Code,
		Verify:      result.Verify,
		Duration:    result.Duration.Seconds(),
	})
}

// Direct handles POST /api/agent/direct, the pattern-matched fast path.
func (h *ChatHandler) Direct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest, "Invalid request body", getRequestID(ctx))
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		response.Error(w, http.StatusBadRequest, response.ErrCodeValidationFailed, err.Error(), getRequestID(ctx))
		return
	}

	result, err := h.orchestrator.Direct(ctx, assistant.Request{
		Message:   req.Message,
		UseMemory: req.UseMemory,
		Confirmed: req.Confirmed,
	})
	if err != nil {
		h.logger.Error("Direct turn failed", "error", err)
		response.HandleError(w, err, getRequestID(ctx))
		return
	}

	response.JSON(w, http.StatusOK, chatResponseFrom(result))
}

func chatResponseFrom(result *assistant.RunResult) ChatResponse {
	return ChatResponse{
		Response:           result.Response,
		ModelUsed:          result.Model,
		Duration:           result.Duration.Seconds(),
		NeedsClarification: result.NeedsClarification,
		Plan:               result.Plan,
		Steps:              result.Steps,
	}
}

func getRequestID(ctx context.Context) string {
	return middleware.GetRequestID(ctx)
}
