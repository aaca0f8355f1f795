package assistant

import (
	"regexp"
	"strings"

	"github.com/attache/attache/pkg/tools/safety"
)

// Step-to-tool intent mapping. A step that matches none of the rules is a
// pure LLM step.

var (
	gitInitPattern = regexp.MustCompile(`git init(?:ialize)?(?:\s+(?:repo(?:sitory)?\s+)?["']?([\w.\-]+)["']?)?`)
	searchPattern  = regexp.MustCompile(`search(?:\s+(?:the\s+)?web)?\s+for\s+(.+)$`)
	projectPattern = regexp.MustCompile(`create\s+(?:a\s+)?(?:new\s+)?project\s+(?:named|called)\s+["']?([\w.\-]+)["']?`)
)

// mapStepToAction resolves a plan step to a tool action via the intent
// phrase table. The second return is false for pure LLM steps.
func mapStepToAction(step string) (safety.Action, bool) {
	lower := strings.ToLower(strings.TrimSpace(step))

	switch {
	case strings.Contains(lower, "screenshot") || strings.Contains(lower, "capture the screen"):
		return safety.Action{Type: "screenshot", Parameters: map[string]any{}}, true

	case strings.Contains(lower, "web") && strings.Contains(lower, "search"):
		query := step
		if match := searchPattern.FindStringSubmatch(lower); match != nil {
			query = strings.TrimSpace(match[1])
		}
		return safety.Action{Type: "web_search", Parameters: map[string]any{"query": query}}, true

	case strings.Contains(lower, "cpu"):
		return safety.Action{Type: "cpu_usage", Parameters: map[string]any{}}, true

	case strings.Contains(lower, "memory usage") || strings.Contains(lower, "check memory") ||
		strings.Contains(lower, "ram"):
		return safety.Action{Type: "memory_usage", Parameters: map[string]any{}}, true

	case strings.Contains(lower, "disk"):
		return safety.Action{Type: "disk_usage", Parameters: map[string]any{}}, true

	case strings.Contains(lower, "system info") || strings.Contains(lower, "system information"):
		return safety.Action{Type: "system_info", Parameters: map[string]any{}}, true

	case strings.Contains(lower, "git init"):
		params := map[string]any{"name": "repo"}
		if match := gitInitPattern.FindStringSubmatch(lower); match != nil && match[1] != "" {
			params["name"] = match[1]
		}
		return safety.Action{Type: "git_init", Parameters: params}, true

	case strings.Contains(lower, "git status"):
		return safety.Action{Type: "git_status", Parameters: map[string]any{}}, true
	}

	return safety.Action{}, false
}

// projectName extracts the target name from a direct project-creation
// request, or "" when the message is not one.
func projectName(message string) string {
	match := projectPattern.FindStringSubmatch(strings.ToLower(message))
	if match == nil {
		return ""
	}
	return match[1]
}
