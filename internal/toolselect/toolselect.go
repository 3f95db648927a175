// Package toolselect picks which tool, if any, a task text triggers for a
// given agent.
package toolselect

import (
	"strings"

	"github.com/fuaadabdullah/goblin-runtime/internal/goblinerr"
	"github.com/fuaadabdullah/goblin-runtime/internal/model"
)

// ActionVerbs is the fixed set of verbs whose presence in the task text makes
// the executor treat a tool as needed (alongside the EXECUTE_TOOL: marker in
// the model output) and run Select.
var ActionVerbs = []string{"start", "run", "build", "test", "deploy", "execute"}

// Selection is the outcome of a selector pass: either a tool id + command,
// or NoTool set when no rule matched or the matched rule names no tool.
type Selection struct {
	ToolID  string
	Command string
	NoTool  bool
}

// Select scans agent's ordered selection rules, returning the first rule
// whose trigger substring (case-insensitive) appears in taskText. A rule
// with an empty tool id means "no tool". A matched tool id not present in
// agent.OwnedTools fails with PermissionDenied.
func Select(agent model.Agent, taskText string, tools map[string]model.Tool) (Selection, error) {
	lowered := strings.ToLower(taskText)
	for _, rule := range agent.SelectionRules {
		if !strings.Contains(lowered, strings.ToLower(rule.Trigger)) {
			continue
		}
		if rule.ToolID == "" {
			return Selection{NoTool: true}, nil
		}
		if !agent.OwnsTool(rule.ToolID) {
			return Selection{}, goblinerr.New(goblinerr.KindPermissionDenied, "agent does not own tool "+rule.ToolID)
		}
		tool, ok := tools[rule.ToolID]
		if !ok {
			return Selection{}, goblinerr.New(goblinerr.KindPermissionDenied, "tool "+rule.ToolID+" not found in catalog")
		}
		return Selection{ToolID: tool.ID, Command: tool.Command}, nil
	}
	return Selection{NoTool: true}, nil
}

// HasActionVerb reports whether taskText contains any of ActionVerbs, the
// signal the executor uses, besides the EXECUTE_TOOL: marker, to decide
// whether to run Select at all.
func HasActionVerb(taskText string) bool {
	lowered := strings.ToLower(taskText)
	for _, verb := range ActionVerbs {
		if strings.Contains(lowered, verb) {
			return true
		}
	}
	return false
}
