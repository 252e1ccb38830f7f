// In file: internal/result/result.go

// Package result defines the Normalized Result envelope: the single, uniform
// shape every tool execution collapses into before it re-enters the conversation.
//
// Both success payloads and every failure in the taxonomy (unknown action,
// missing credential, transport error, upstream error, malformed response,
// argument validation) are expressed as a Normalized value. Nothing past the
// dispatch boundary ever surfaces as a raw Go error to the chat pipeline.
package result

import (
	"encoding/json"
	"fmt"
)

// Kind classifies an error envelope. The values are stable wire strings;
// the model and the host UI both key off them.
type Kind string

const (
	KindUnknownAction       Kind = "unknown_action"
	KindMissingCredential   Kind = "missing_credential"
	KindNetworkError        Kind = "network_error"
	KindServiceError        Kind = "service_error"
	KindResponseFormatError Kind = "response_format_error"
	KindValidationError     Kind = "validation_error"
)

// Normalized is the envelope appended to the conversation after executing an
// action. Exactly one of the two forms is populated:
//
//   - success: IsError=false, Data carries the (possibly summarized) payload.
//   - error:   IsError=true, Kind and Message describe what went wrong.
//     Status carries the upstream HTTP status for service errors.
//
// Messages are human-readable and never contain credentials or stack traces.
type Normalized struct {
	IsError bool            `json:"is_error"`
	Kind    Kind            `json:"kind,omitempty"`
	Message string          `json:"message,omitempty"`
	Status  int             `json:"status,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Success wraps an already-marshaled payload.
func Success(data json.RawMessage) Normalized {
	return Normalized{Data: data}
}

// SuccessValue marshals v into a success envelope. A marshal failure is
// converted into a response-format error rather than returned; the callers of
// this package must never have to handle a second error channel.
func SuccessValue(v any) Normalized {
	data, err := json.Marshal(v)
	if err != nil {
		return Errorf(KindResponseFormatError, "failed to encode result: %v", err)
	}
	return Normalized{Data: data}
}

// Errorf builds an error envelope with a formatted message.
func Errorf(kind Kind, format string, args ...any) Normalized {
	return Normalized{
		IsError: true,
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}

// ServiceError builds the envelope for a non-2xx upstream response. The status
// code is kept both in the structured field and in the message so the model
// can read it without understanding the envelope.
func ServiceError(status int, body string) Normalized {
	return Normalized{
		IsError: true,
		Kind:    KindServiceError,
		Status:  status,
		Message: fmt.Sprintf("Notion API error (%d): %s", status, body),
	}
}

// ModelText renders the envelope as the string handed back to the model as
// the tool-result message content.
func (n Normalized) ModelText() string {
	b, err := json.Marshal(n)
	if err != nil {
		return fmt.Sprintf(`{"is_error":true,"kind":%q,"message":"failed to encode tool result"}`, KindResponseFormatError)
	}
	return string(b)
}
