// In file: internal/intent/matcher_test.go
package intent

import (
	"reflect"
	"testing"

	"github.com/dileep-u-k/notion-gateway/internal/actions"
	"github.com/dileep-u-k/notion-gateway/internal/tools"
)

func newTestMatcher(t *testing.T) *Matcher {
	t.Helper()
	registry, err := actions.NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	matcher, err := NewMatcher(registry, nil)
	if err != nil {
		t.Fatalf("NewMatcher() error = %v", err)
	}
	return matcher
}

func chatPayload(userMessage string) map[string]any {
	return map[string]any{
		"model": "gpt-4o",
		"messages": []any{
			map[string]any{"role": "system", "content": "You are a helpful assistant."},
			map[string]any{"role": "user", "content": userMessage},
		},
	}
}

func forcedActionName(t *testing.T, choice any) string {
	t.Helper()
	forced, ok := choice.(map[string]any)
	if !ok {
		t.Fatalf("tool_choice = %v (%T), want a forced-function object", choice, choice)
	}
	fn, ok := forced["function"].(map[string]any)
	if !ok {
		t.Fatalf("tool_choice has no function object: %v", forced)
	}
	name, _ := fn["name"].(string)
	return name
}

func TestAugmentWithoutIntegrationLeavesPayloadUntouched(t *testing.T) {
	matcher := newTestMatcher(t)
	payload := chatPayload("what notion databases do i have")
	want := chatPayload("what notion databases do i have")

	matcher.Augment(payload, false)

	if !reflect.DeepEqual(payload, want) {
		t.Errorf("payload mutated for disconnected user: %v", payload)
	}
	if _, ok := payload["tools"]; ok {
		t.Error("tools were injected for a disconnected user")
	}
	if _, ok := payload["tool_choice"]; ok {
		t.Error("tool_choice was set for a disconnected user")
	}
}

func TestAugmentSpecificIntentForcesListDatabases(t *testing.T) {
	tests := []struct {
		name    string
		message string
	}{
		{name: "plain", message: "what notion databases do i have"},
		{name: "upper case", message: "What NOTION Databases Do I Have?"},
		{name: "embedded", message: "hey, could you tell me what databases do i have in notion please"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			matcher := newTestMatcher(t)
			payload := chatPayload(tc.message)

			matcher.Augment(payload, true)

			name := forcedActionName(t, payload["tool_choice"])
			if name != actions.ActionListDatabases {
				t.Errorf("forced action = %q, want %q", name, actions.ActionListDatabases)
			}
		})
	}
}

func TestAugmentGeneralIntentSetsAuto(t *testing.T) {
	matcher := newTestMatcher(t)
	payload := chatPayload("can you check the meeting notes in notion for me")

	matcher.Augment(payload, true)

	if choice, _ := payload["tool_choice"].(string); choice != "auto" {
		t.Errorf("tool_choice = %v, want \"auto\"", payload["tool_choice"])
	}
}

func TestAugmentSpecificIntentOutranksGeneral(t *testing.T) {
	// The message matches both the general set ("my notion") and the
	// specific set; the specific rule must win.
	matcher := newTestMatcher(t)
	payload := chatPayload("show me my notion databases i have access to")

	matcher.Augment(payload, true)

	name := forcedActionName(t, payload["tool_choice"])
	if name != actions.ActionListDatabases {
		t.Errorf("forced action = %q, want %q", name, actions.ActionListDatabases)
	}
}

func TestAugmentNoMatchPreservesToolChoice(t *testing.T) {
	matcher := newTestMatcher(t)

	payload := chatPayload("tell me a joke about databases")
	payload["tool_choice"] = "none"

	matcher.Augment(payload, true)

	if choice, _ := payload["tool_choice"].(string); choice != "none" {
		t.Errorf("tool_choice = %v, want preserved \"none\"", payload["tool_choice"])
	}
	// Tools are still offered even when no phrase matched.
	toolList, _ := payload["tools"].([]any)
	if len(toolList) == 0 {
		t.Error("tools were not injected for a connected user")
	}
}

func TestAugmentUnionsWithExistingTools(t *testing.T) {
	matcher := newTestMatcher(t)
	payload := chatPayload("please search notion for the roadmap")

	hostTool := map[string]any{
		"type": "function",
		"function": map[string]any{
			"name":        "get_weather",
			"description": "Host-provided weather tool",
		},
	}
	duplicate := map[string]any{
		"type": "function",
		"function": map[string]any{
			"name": "search",
		},
	}
	payload["tools"] = []any{hostTool, duplicate}

	matcher.Augment(payload, true)

	toolList, _ := payload["tools"].([]any)
	names := map[string]int{}
	for _, entry := range toolList {
		switch v := entry.(type) {
		case map[string]any:
			fn, _ := v["function"].(map[string]any)
			name, _ := fn["name"].(string)
			names[name]++
		case tools.Tool:
			names[v.Function.Name]++
		}
	}

	if names["get_weather"] != 1 {
		t.Error("host-provided tool was dropped or duplicated")
	}
	if names["search"] != 1 {
		t.Errorf("search declared %d times, want union to keep exactly one", names["search"])
	}
	if names["list_databases"] != 1 {
		t.Error("registry tools were not appended")
	}
}

func TestNewMatcherRejectsUnknownForcedAction(t *testing.T) {
	registry, err := actions.NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	_, err = NewMatcher(registry, []Rule{{Phrases: []string{"x"}, Force: "launch_rockets"}})
	if err == nil {
		t.Fatal("NewMatcher accepted a rule forcing an unknown action")
	}
}
