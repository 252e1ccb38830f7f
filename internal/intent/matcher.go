// In file: internal/intent/matcher.go

// Package intent decides, per outbound chat-completion request, whether the
// Notion actions should be offered to the model at all and whether one of
// them should be forced instead of left to model discretion.
//
// Detection is deliberately simple: ordered phrase lists scanned against the
// lower-cased trailing user message, first match wins. Phrase lists are
// inherently fragile and the sets can overlap; "first rule wins" is the
// documented tie-break, not an accident.
package intent

import (
	"fmt"
	"strings"

	"github.com/dileep-u-k/notion-gateway/internal/actions"
	"github.com/dileep-u-k/notion-gateway/internal/tools"
)

// Rule is one ordered phrase set. A rule with Force set names exactly one
// action the model must call when any of its phrases matches; a rule without
// Force merely switches tool_choice to "auto".
type Rule struct {
	Phrases []string `yaml:"phrases"`
	Force   string   `yaml:"force,omitempty"`
}

// Matcher mutates outbound payloads in place. It performs no I/O and holds
// no per-request state; a single instance is shared across requests.
type Matcher struct {
	registry *actions.Registry
	rules    []Rule
}

// NewMatcher validates that every forced action in the rule set resolves
// against the registry. Empty rules fall back to the built-in defaults.
func NewMatcher(registry *actions.Registry, rules []Rule) (*Matcher, error) {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	normalized := make([]Rule, len(rules))
	for i, rule := range rules {
		if rule.Force != "" {
			if _, ok := registry.Resolve(rule.Force); !ok {
				return nil, fmt.Errorf("intent rule %d forces unknown action %q", i, rule.Force)
			}
		}
		phrases := make([]string, len(rule.Phrases))
		for j, phrase := range rule.Phrases {
			phrases[j] = strings.ToLower(phrase)
		}
		normalized[i] = Rule{Phrases: phrases, Force: rule.Force}
	}
	return &Matcher{registry: registry, rules: normalized}, nil
}

// Augment applies the matcher to one outbound payload.
//
// If the user has no active integration the payload is left untouched. With
// an active integration the registry's declarations are union-appended to the
// payload's tool list (never overwriting tools the host already attached),
// and the trailing user message is scanned against the ordered rules:
//
//   - a specific-intent match sets a forced tool_choice naming one action,
//   - a general-intent match sets tool_choice to "auto",
//   - no match leaves tool_choice at whatever the payload already had.
func (m *Matcher) Augment(payload map[string]any, connected bool) {
	if !connected || payload == nil {
		return
	}

	m.appendTools(payload)

	message := strings.ToLower(trailingUserMessage(payload))
	if message == "" {
		return
	}
	for _, rule := range m.rules {
		for _, phrase := range rule.Phrases {
			if !strings.Contains(message, phrase) {
				continue
			}
			if rule.Force != "" {
				decl, _ := m.registry.Resolve(rule.Force)
				payload["tool_choice"] = tools.ForcedChoice(decl.Name)
			} else {
				payload["tool_choice"] = "auto"
			}
			return
		}
	}
}

// appendTools unions the registry definitions into the payload's tool list,
// skipping any function name the host already declared.
func (m *Matcher) appendTools(payload map[string]any) {
	existing, _ := payload["tools"].([]any)

	present := make(map[string]bool, len(existing))
	for _, entry := range existing {
		if name := toolEntryName(entry); name != "" {
			present[name] = true
		}
	}

	for _, def := range m.registry.Definitions() {
		if present[def.Function.Name] {
			continue
		}
		existing = append(existing, def)
	}
	payload["tools"] = existing
}

// trailingUserMessage returns the content of the last user message in the
// payload, or "" when the payload has no usable message text.
func trailingUserMessage(payload map[string]any) string {
	messages, _ := payload["messages"].([]any)
	for i := len(messages) - 1; i >= 0; i-- {
		msg, ok := messages[i].(map[string]any)
		if !ok {
			continue
		}
		if role, _ := msg["role"].(string); role != "user" {
			continue
		}
		content, _ := msg["content"].(string)
		return content
	}
	return ""
}

// toolEntryName extracts the function name from a payload tool entry, which
// may be a decoded JSON object (host-provided) or one of our typed tools.
func toolEntryName(entry any) string {
	switch v := entry.(type) {
	case tools.Tool:
		return v.Function.Name
	case map[string]any:
		fn, _ := v["function"].(map[string]any)
		name, _ := fn["name"].(string)
		return name
	default:
		return ""
	}
}

// DefaultRules mirrors the phrase lists the integration originally shipped
// with. Order matters: the specific database-listing set outranks the search
// set, which outranks the broad service-name mentions.
func DefaultRules() []Rule {
	return []Rule{
		{
			Force: actions.ActionListDatabases,
			Phrases: []string{
				"what notion databases", "list notion database", "show notion database",
				"my notion database", "notion databases do i have", "notion databases i have",
				"access to notion database", "what databases do i have in notion",
			},
		},
		{
			Phrases: []string{
				"search notion", "find in notion", "look for in notion",
				"search my notion for", "find notion pages about",
			},
		},
		{
			Phrases: []string{
				"list notion", "show notion", "notion database", "notion databases",
				"my notion", "in notion", "from notion", "notion workspace",
			},
		},
	}
}
