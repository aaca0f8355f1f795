package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/attache/attache/pkg/api/response"
	"github.com/attache/attache/pkg/logger"
	"github.com/attache/attache/pkg/tools"
	"github.com/attache/attache/pkg/tools/safety"
)

// ToolsHandler handles direct tool invocation endpoints. Every request goes
// through the same executor path as agent-initiated actions, so the safety
// gate applies unconditionally.
type ToolsHandler struct {
	executor *tools.Executor
	logger   logger.Logger
}

// NewToolsHandler creates a new tools handler.
func NewToolsHandler(executor *tools.Executor, log logger.Logger) *ToolsHandler {
	return &ToolsHandler{executor: executor, logger: log}
}

// DatabaseRequest is the POST /api/tools/database request body.
type DatabaseRequest struct {
	Action string `json:"action"`
	Query  string `json:"query"`
	DBPath string `json:"db_path"`
}

// ToolResponse is the wire shape of the direct tool endpoints: a result
// string on success, an error string on failure.
type ToolResponse struct {
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

func toolResponseFrom(result tools.Result) ToolResponse {
	if !result.Success {
		return ToolResponse{Error: result.Error}
	}
	return ToolResponse{Result: renderToolOutput(result.Output)}
}

// renderToolOutput flattens a tool's output value to the response string.
// Command outputs surface as their stdout text with the trailing newline
// restored; structured outputs are serialized as JSON.
func renderToolOutput(output any) string {
	switch v := output.(type) {
	case nil:
		return ""
	case string:
		return v
	case map[string]any:
		if stdout, ok := v["stdout"].(string); ok {
			if stdout == "" {
				return ""
			}
			return stdout + "\n"
		}
	}
	data, err := json.Marshal(output)
	if err != nil {
		return fmt.Sprint(output)
	}
	return string(data)
}

// Execute handles POST /api/tools/execute. The body carries "action" plus the
// tool's parameters inline, e.g. {"action":"bash","command":"ls"}. Tool
// failures and gate rejections come back as a 200 envelope with "error" set.
func (h *ToolsHandler) Execute(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest, "Invalid request body", getRequestID(ctx))
		return
	}

	name, _ := body["action"].(string)
	if strings.TrimSpace(name) == "" {
		response.Error(w, http.StatusBadRequest, response.ErrCodeValidationFailed, "action is required", getRequestID(ctx))
		return
	}
	confirmed, _ := body["confirmed"].(bool)

	params := make(map[string]any, len(body))
	for key, value := range body {
		if key == "action" || key == "confirmed" {
			continue
		}
		params[key] = value
	}

	result := h.executor.Execute(ctx, safety.Action{
		Type:       name,
		Parameters: params,
		Source:     safety.SourceUser,
		Confirmed:  confirmed,
	})
	response.JSON(w, http.StatusOK, toolResponseFrom(result))
}

// Database handles POST /api/tools/database, a scoped front for the
// database_query tool.
func (h *ToolsHandler) Database(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req DatabaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest, "Invalid request body", getRequestID(ctx))
		return
	}
	if req.Action != "query" {
		response.Error(w, http.StatusBadRequest, response.ErrCodeValidationFailed, `action must be "query"`, getRequestID(ctx))
		return
	}

	result := h.executor.Execute(ctx, safety.Action{
		Type: "database_query",
		Parameters: map[string]any{
			"query":   req.Query,
			"db_path": req.DBPath,
		},
		Source: safety.SourceUser,
	})
	response.JSON(w, http.StatusOK, toolResponseFrom(result))
}
