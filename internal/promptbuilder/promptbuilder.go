// Package promptbuilder turns an agent and a task into the system/user
// prompt pair sent to a provider. It performs no provider-specific
// formatting.
package promptbuilder

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fuaadabdullah/goblin-runtime/internal/model"
)

const toolMarkerInstruction = "When a shell tool is required to complete this task, include the literal marker EXECUTE_TOOL: in your response."

// Build produces the system prompt (agent identity, responsibilities, tool
// marker instruction) and user prompt (task text plus any context rendered
// as key: value lines) for one task.
func Build(agent model.Agent, taskText string, context map[string]string) (systemPrompt, userPrompt string) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are %s, a member of the %s guild.\n", agent.Title, agent.Guild)
	if len(agent.Responsibilities) > 0 {
		sb.WriteString("Your responsibilities:\n")
		for _, r := range agent.Responsibilities {
			fmt.Fprintf(&sb, "- %s\n", r)
		}
	}
	sb.WriteString(toolMarkerInstruction)
	systemPrompt = sb.String()

	var ub strings.Builder
	ub.WriteString(taskText)
	if len(context) > 0 {
		keys := make([]string, 0, len(context))
		for k := range context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		ub.WriteString("\n")
		for _, k := range keys {
			fmt.Fprintf(&ub, "%s: %s\n", k, context[k])
		}
	}
	userPrompt = ub.String()
	return systemPrompt, userPrompt
}
