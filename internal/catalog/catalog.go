// Package catalog loads, validates, and hot-reloads the agent/guild/tool
// configuration document.
package catalog

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/fuaadabdullah/goblin-runtime/internal/goblinerr"
	"github.com/fuaadabdullah/goblin-runtime/internal/model"
)

// DefaultPaths are tried in order when no explicit path is given.
var DefaultPaths = []string{
	"goblins.yaml",
	"goblins.yml",
	"config/goblins.yaml",
}

// knownProviders is the fixed set of recognized provider identifiers,
// canonicalized the same way internal/llm resolves aliases.
var knownProviders = map[string]bool{
	"anthropic": true,
	"openai":    true,
	"gemini":    true,
	"bedrock":   true,
	"local":     true,
}

type toolDoc struct {
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	Summary string `yaml:"summary"`
	Owner   string `yaml:"owner"`
	Command string `yaml:"command"`
}

type selectionRuleDoc struct {
	Trigger string `yaml:"trigger"`
	Tool    string `yaml:"tool"`
	Note    string `yaml:"note"`
}

type toolsDoc struct {
	Owned          []string           `yaml:"owned"`
	SelectionRules []selectionRuleDoc `yaml:"selection_rules"`
}

type brainDoc struct {
	Local        []string `yaml:"local"`
	Routers      []string `yaml:"routers"`
	PrefersLocal bool     `yaml:"prefers_local"`
}

type agentDoc struct {
	ID               string   `yaml:"id"`
	Title            string   `yaml:"title"`
	Brain            brainDoc `yaml:"brain"`
	Responsibilities []string `yaml:"responsibilities"`
	KPIs             []string `yaml:"kpis"`
	Tools            toolsDoc `yaml:"tools"`
}

type guildDoc struct {
	Name     string     `yaml:"name"`
	Charter  string     `yaml:"charter"`
	Toolbelt []toolDoc  `yaml:"toolbelt"`
	Members  []agentDoc `yaml:"members"`
}

type scheduledTriggerDoc struct {
	Name              string `yaml:"name"`
	CronExpr          string `yaml:"cron_expr"`
	OrchestrationText string `yaml:"orchestration_text"`
	DefaultAgentID    string `yaml:"default_agent_id"`
}

type documentRoot struct {
	Guilds            []guildDoc            `yaml:"guilds"`
	ScheduledTriggers []scheduledTriggerDoc `yaml:"scheduled_triggers"`
}

// Catalog is the loaded, validated, immutable-after-load agent/guild/tool
// index. It is safe for concurrent read without locking.
type Catalog struct {
	agents   map[string]model.Agent
	guilds   []model.Guild
	tools    map[string]model.Tool
	triggers []model.ScheduledTrigger
	warnings []string
}

// ScheduledTriggers returns the cron-driven orchestration triggers loaded
// alongside the catalog.
func (c *Catalog) ScheduledTriggers() []model.ScheduledTrigger { return c.triggers }

// Warnings returns non-fatal validation notes collected while loading, e.g.
// an agent referencing a provider identifier not in the known set.
func (c *Catalog) Warnings() []string { return c.warnings }

// Agents returns the full set of loaded agents, keyed by id.
func (c *Catalog) Agents() map[string]model.Agent { return c.agents }

// Agent looks up one agent by id.
func (c *Catalog) Agent(id string) (model.Agent, bool) {
	a, ok := c.agents[id]
	return a, ok
}

// Guilds returns the loaded guild list with member toolbelts.
func (c *Catalog) Guilds() []model.Guild { return c.guilds }

// Tool looks up a tool by id across all guilds.
func (c *Catalog) Tool(id string) (model.Tool, bool) {
	t, ok := c.tools[id]
	return t, ok
}

// Tools returns the full tool index, keyed by id.
func (c *Catalog) Tools() map[string]model.Tool { return c.tools }

// Load reads and validates the catalog document at path. If path is empty,
// DefaultPaths are tried in order.
func Load(path string) (*Catalog, error) {
	data, resolvedPath, err := readFirst(path)
	if err != nil {
		return nil, goblinerr.Wrap(goblinerr.KindConfiguration, "reading catalog document", err)
	}

	var root documentRoot
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, goblinerr.NewConfigurationError([]error{
			fmt.Errorf("parsing catalog document %s: %w", resolvedPath, err),
		})
	}

	cat, hardErrs := build(root)
	if len(hardErrs) > 0 {
		return nil, goblinerr.NewConfigurationError(hardErrs)
	}
	return cat, nil
}

// ResolvePath returns the catalog file path Load would read: path itself if
// given, otherwise the first of DefaultPaths that exists. Used to locate the
// file a Watch should follow when the caller didn't pick one explicitly.
func ResolvePath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	for _, candidate := range DefaultPaths {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no catalog file found among default paths %v", DefaultPaths)
}

func readFirst(path string) ([]byte, string, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		return data, path, err
	}
	var lastErr error
	for _, candidate := range DefaultPaths {
		data, err := os.ReadFile(candidate)
		if err == nil {
			return data, candidate, nil
		}
		lastErr = err
	}
	return nil, "", lastErr
}

// build converts the parsed document into a Catalog, returning every hard
// validation failure it finds rather than stopping at the first.
func build(root documentRoot) (*Catalog, []error) {
	var errs []error
	var warnings []string
	agents := map[string]model.Agent{}
	tools := map[string]model.Tool{}
	guilds := make([]model.Guild, 0, len(root.Guilds))

	for _, g := range root.Guilds {
		guildToolIDs := map[string]bool{}
		toolbelt := make([]model.Tool, 0, len(g.Toolbelt))
		for _, td := range g.Toolbelt {
			tool := model.Tool{ID: td.ID, Name: td.Name, HumanSummary: td.Summary, OwnerAgentID: td.Owner, Command: td.Command}
			if guildToolIDs[tool.ID] {
				errs = append(errs, fmt.Errorf("duplicate tool id %q in guild %q", tool.ID, g.Name))
				continue
			}
			guildToolIDs[tool.ID] = true
			tools[tool.ID] = tool
			toolbelt = append(toolbelt, tool)
		}

		guildAgentIDs := map[string]bool{}
		memberIDs := make([]string, 0, len(g.Members))
		for _, ad := range g.Members {
			agent := model.Agent{
				ID:               ad.ID,
				Title:            ad.Title,
				Guild:            g.Name,
				Responsibilities: ad.Responsibilities,
				KPIs:             ad.KPIs,
				Brain:            model.Brain{Routers: ad.Brain.Routers, PrefersLocal: ad.Brain.PrefersLocal},
				OwnedTools:       ad.Tools.Owned,
			}
			for _, sr := range ad.Tools.SelectionRules {
				agent.SelectionRules = append(agent.SelectionRules, model.SelectionRule{
					Trigger: sr.Trigger,
					ToolID:  sr.Tool,
					Note:    sr.Note,
				})
			}

			if _, dup := agents[agent.ID]; dup {
				errs = append(errs, fmt.Errorf("duplicate agent id %q", agent.ID))
				continue
			}

			for _, router := range agent.Brain.Routers {
				canonical := strings.ToLower(strings.TrimSpace(router))
				if alias, ok := providerAliases[canonical]; ok {
					canonical = alias
				}
				if !knownProviders[canonical] {
					warnings = append(warnings, fmt.Sprintf("agent %q references unknown provider %q", agent.ID, router))
				}
			}

			for _, sr := range agent.SelectionRules {
				if sr.ToolID == "" {
					continue
				}
				if !contains(agent.OwnedTools, sr.ToolID) {
					errs = append(errs, fmt.Errorf("agent %q selection rule references tool %q not in owned_tools", agent.ID, sr.ToolID))
					continue
				}
				if !toolbeltContains(toolbelt, sr.ToolID) {
					errs = append(errs, fmt.Errorf("agent %q selection rule references tool %q not in guild %q toolbelt", agent.ID, sr.ToolID, g.Name))
				}
			}

			agents[agent.ID] = agent
			guildAgentIDs[agent.ID] = true
			memberIDs = append(memberIDs, agent.ID)
		}

		for _, tool := range toolbelt {
			if tool.OwnerAgentID != "" && !guildAgentIDs[tool.OwnerAgentID] {
				errs = append(errs, fmt.Errorf("tool %q owner %q does not resolve to an agent in guild %q", tool.ID, tool.OwnerAgentID, g.Name))
			}
		}

		guilds = append(guilds, model.Guild{Name: g.Name, Charter: g.Charter, Toolbelt: toolbelt, Members: memberIDs})
	}

	triggers := make([]model.ScheduledTrigger, 0, len(root.ScheduledTriggers))
	seenTriggers := map[string]bool{}
	for _, td := range root.ScheduledTriggers {
		if td.Name == "" || td.CronExpr == "" || td.OrchestrationText == "" {
			errs = append(errs, fmt.Errorf("scheduled trigger %q missing name, cron_expr, or orchestration_text", td.Name))
			continue
		}
		if seenTriggers[td.Name] {
			errs = append(errs, fmt.Errorf("duplicate scheduled trigger name %q", td.Name))
			continue
		}
		if td.DefaultAgentID != "" {
			if _, ok := agents[td.DefaultAgentID]; !ok {
				errs = append(errs, fmt.Errorf("scheduled trigger %q default_agent_id %q does not resolve to a known agent", td.Name, td.DefaultAgentID))
				continue
			}
		}
		seenTriggers[td.Name] = true
		triggers = append(triggers, model.ScheduledTrigger{
			Name:              td.Name,
			CronExpr:          td.CronExpr,
			OrchestrationText: td.OrchestrationText,
			DefaultAgentID:    td.DefaultAgentID,
		})
	}

	return &Catalog{agents: agents, guilds: guilds, tools: tools, triggers: triggers, warnings: warnings}, errs
}

var providerAliases = map[string]string{
	"google": "gemini",
	"claude": "anthropic",
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func toolbeltContains(toolbelt []model.Tool, id string) bool {
	for _, t := range toolbelt {
		if t.ID == id {
			return true
		}
	}
	return false
}
