// In file: internal/tools/types.go

// Package tools defines the provider-agnostic function-calling structures the
// gateway speaks with the model: the tool declarations injected into the
// outbound payload and the tool calls the model emits back. The shapes follow
// the common JSON Schema convention shared by the major chat-completion APIs.
package tools

// ToolTypeFunction is the standard type for function-based tools.
const ToolTypeFunction = "function"

// Tool is one entry of a payload's "tools" list.
type Tool struct {
	Type     string   `json:"type"`
	Function Function `json:"function"`
}

// Function declares a callable tool: its name, a description the model uses
// to decide when to call it, and a JSON Schema for its arguments.
type Function struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Parameters  JSONSchema `json:"parameters"`
}

// JSONSchema is a structured, type-safe representation of the JSON Schema
// nodes used for tool parameters. Using this struct instead of
// map[string]interface{} keeps tool definitions readable and prevents the
// usual silent schema typos.
type JSONSchema struct {
	Type        string                 `json:"type"`
	Description string                 `json:"description,omitempty"`
	Properties  map[string]*JSONSchema `json:"properties,omitempty"`
	Items       *JSONSchema            `json:"items,omitempty"`
	Required    []string               `json:"required,omitempty"`
}

// ToolCall is a model-emitted request to execute a named tool. The ID ties
// the execution result back to the request in the next conversation turn.
type ToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function ToolCallFunction `json:"function"`
}

// ToolCallFunction holds the name and the raw JSON argument string of a
// requested call. The arguments are kept as a string: the model produced
// them and the dispatcher owns parsing (and rejecting) them.
type ToolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// NewFunctionTool builds a Tool with the correct "function" type tag.
func NewFunctionTool(name, description string, parameters JSONSchema) Tool {
	return Tool{
		Type: ToolTypeFunction,
		Function: Function{
			Name:        name,
			Description: description,
			Parameters:  parameters,
		},
	}
}

// ForcedChoice is the tool_choice value that instructs the model it must emit
// a call to exactly one named function on its next turn.
func ForcedChoice(name string) map[string]any {
	return map[string]any{
		"type":     ToolTypeFunction,
		"function": map[string]any{"name": name},
	}
}
