package assistant

import (
	"regexp"
	"strings"
)

// planLine matches a numbered plan step: "1. do x", "2) do y", "3 - do z".
var planLine = regexp.MustCompile(`^\s*(\d+)\s*[.)\-:]\s+(.+)$`)

// parsePlan extracts the ordered step descriptions from a model's numbered
// plan, capped at maxSteps. Lines that are not numbered steps (preamble,
// blank lines, closing remarks) are ignored.
func parsePlan(text string, maxSteps int) []string {
	var steps []string
	for _, line := range strings.Split(text, "\n") {
		match := planLine.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		step := strings.TrimSpace(match[2])
		if step == "" {
			continue
		}
		steps = append(steps, step)
		if maxSteps > 0 && len(steps) == maxSteps {
			break
		}
	}
	return steps
}
