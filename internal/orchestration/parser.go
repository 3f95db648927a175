// Package orchestration parses the orchestration DSL into a step DAG and
// drives that DAG to completion via a topological, batched scheduler.
package orchestration

import (
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/fuaadabdullah/goblin-runtime/internal/goblinerr"
	"github.com/fuaadabdullah/goblin-runtime/internal/model"
)

var keywordToken = regexp.MustCompile(`\bIF_CONTAINS\([^)]*\)|\bIF_SUCCESS\b|\bIF_FAILURE\b|\bTHEN\b|\bAND\b`)

var agentPrefix = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9_-]*):(.*)$`)

type tokenKind int

const (
	tokenText tokenKind = iota
	tokenCondition
	tokenSeparator
)

type token struct {
	kind  tokenKind
	value string // raw text for tokenText; keyword literal for the others
}

// Parse builds an OrchestrationPlan from raw DSL text. Atoms without an
// explicit "agent_id:" prefix are assigned defaultAgentID.
func Parse(text, defaultAgentID string) (*model.OrchestrationPlan, error) {
	tokens := tokenize(text)

	type pendingAtom struct {
		text      string
		condition *model.Condition
	}

	var groups [][]pendingAtom
	var currentGroup []pendingAtom
	var atomText string
	var haveText bool
	var condition *model.Condition

	finalizeAtom := func() error {
		if !haveText || strings.TrimSpace(atomText) == "" {
			return goblinerr.New(goblinerr.KindParse, "orchestration DSL atom has no task text")
		}
		currentGroup = append(currentGroup, pendingAtom{text: atomText, condition: condition})
		atomText = ""
		haveText = false
		condition = nil
		return nil
	}

	for _, tok := range tokens {
		switch tok.kind {
		case tokenText:
			trimmed := strings.TrimSpace(tok.value)
			if trimmed == "" {
				continue
			}
			if haveText {
				return nil, goblinerr.New(goblinerr.KindParse, "unexpected consecutive task text in orchestration DSL")
			}
			atomText = tok.value
			haveText = true
		case tokenCondition:
			if !haveText {
				return nil, goblinerr.New(goblinerr.KindParse, "condition with no preceding task text in orchestration DSL")
			}
			condition = parseCondition(tok.value)
		case tokenSeparator:
			if err := finalizeAtom(); err != nil {
				return nil, err
			}
			if tok.value == "THEN" {
				groups = append(groups, currentGroup)
				currentGroup = nil
			}
		}
	}
	if haveText {
		if err := finalizeAtom(); err != nil {
			return nil, err
		}
	}
	if len(currentGroup) > 0 {
		groups = append(groups, currentGroup)
	}

	if len(groups) == 0 {
		return nil, goblinerr.New(goblinerr.KindParse, "orchestration DSL is empty or contains only keywords")
	}

	var steps []model.OrchestrationStep
	var prevGroupIDs []string
	for _, group := range groups {
		var groupIDs []string
		for _, atom := range group {
			agentID, taskText := splitAgentPrefix(atom.text, defaultAgentID)
			step := model.OrchestrationStep{
				ID:           uuid.NewString(),
				AgentID:      agentID,
				TaskText:     taskText,
				Dependencies: append([]string(nil), prevGroupIDs...),
				Condition:    atom.condition,
				Status:       model.StepPending,
			}
			steps = append(steps, step)
			groupIDs = append(groupIDs, step.ID)
		}
		prevGroupIDs = groupIDs
	}

	if err := assertAcyclic(steps); err != nil {
		return nil, err
	}

	return &model.OrchestrationPlan{
		ID:      uuid.NewString(),
		RawText: text,
		Steps:   steps,
		Status:  model.PlanPending,
		Metadata: model.PlanMetadata{
			ParallelBatches: len(groups),
		},
	}, nil
}

func tokenize(text string) []token {
	matches := keywordToken.FindAllStringIndex(text, -1)
	var tokens []token
	pos := 0
	for _, m := range matches {
		tokens = append(tokens, token{kind: tokenText, value: text[pos:m[0]]})
		kw := text[m[0]:m[1]]
		switch {
		case kw == "THEN" || kw == "AND":
			tokens = append(tokens, token{kind: tokenSeparator, value: kw})
		default:
			tokens = append(tokens, token{kind: tokenCondition, value: kw})
		}
		pos = m[1]
	}
	tokens = append(tokens, token{kind: tokenText, value: text[pos:]})
	return tokens
}

func parseCondition(raw string) *model.Condition {
	switch {
	case raw == "IF_SUCCESS":
		return &model.Condition{Operator: model.IfSuccess}
	case raw == "IF_FAILURE":
		return &model.Condition{Operator: model.IfFailure}
	case strings.HasPrefix(raw, "IF_CONTAINS("):
		inner := strings.TrimSuffix(strings.TrimPrefix(raw, "IF_CONTAINS("), ")")
		inner = strings.TrimSpace(inner)
		inner = strings.Trim(inner, `"'`)
		return &model.Condition{Operator: model.IfContains, Value: inner}
	}
	return nil
}

func splitAgentPrefix(text, defaultAgentID string) (agentID, taskText string) {
	trimmed := strings.TrimSpace(text)
	if m := agentPrefix.FindStringSubmatch(trimmed); m != nil {
		return m[1], strings.TrimSpace(m[2])
	}
	return defaultAgentID, trimmed
}

// assertAcyclic defensively verifies the constructed step graph has no
// cycle; by construction (layered sequence groups) one cannot occur.
func assertAcyclic(steps []model.OrchestrationStep) error {
	byID := make(map[string]model.OrchestrationStep, len(steps))
	for _, s := range steps {
		byID[s.ID] = s
	}
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(steps))
	var visit func(id string) error
	visit = func(id string) error {
		switch color[id] {
		case gray:
			return goblinerr.New(goblinerr.KindParse, "orchestration DSL produced a cyclic dependency graph")
		case black:
			return nil
		}
		color[id] = gray
		for _, dep := range byID[id].Dependencies {
			if err := visit(dep); err != nil {
				return err
			}
		}
		color[id] = black
		return nil
	}
	for _, s := range steps {
		if err := visit(s.ID); err != nil {
			return err
		}
	}
	return nil
}
