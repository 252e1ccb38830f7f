// In file: internal/dispatch/dispatcher.go

// Package dispatch routes model-emitted tool invocations to the execution
// client. It owns action resolution (including the legacy alias table),
// argument validation and the credential lookup, and guarantees that every
// outcome (success or any failure) leaves as a Normalized Result envelope.
// No error from this layer ever propagates to the chat pipeline as a fault.
package dispatch

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"github.com/dileep-u-k/notion-gateway/internal/actions"
	"github.com/dileep-u-k/notion-gateway/internal/integrations"
	"github.com/dileep-u-k/notion-gateway/internal/notion"
	"github.com/dileep-u-k/notion-gateway/internal/result"
)

// Executor performs a single attempt of a declared action against the
// external service. *notion.Client is the production implementation.
type Executor interface {
	Execute(ctx context.Context, decl *actions.Declaration, args map[string]any, token string) result.Normalized
}

// Dispatcher is stateless across invocations; one instance serves all
// concurrent requests.
type Dispatcher struct {
	registry    *actions.Registry
	credentials integrations.CredentialProvider
	executor    Executor
	normalizer  *notion.Normalizer
}

func NewDispatcher(registry *actions.Registry, credentials integrations.CredentialProvider, executor Executor) *Dispatcher {
	return &Dispatcher{
		registry:    registry,
		credentials: credentials,
		executor:    executor,
		normalizer:  notion.NewNormalizer(),
	}
}

// Dispatch executes one tool invocation for userID.
//
// The flow short-circuits in order: unknown action, malformed or incomplete
// arguments, missing credential (before any network call), then exactly one
// execution attempt followed by normalization.
func (d *Dispatcher) Dispatch(ctx context.Context, userID, name, rawArgs string) result.Normalized {
	decl, ok := d.registry.Resolve(name)
	if !ok {
		log.Printf("Dispatch rejected unknown action %q", name)
		return result.Errorf(result.KindUnknownAction, "unknown action %q", name)
	}

	args, err := parseArguments(rawArgs)
	if err != nil {
		return result.Errorf(result.KindValidationError, "invalid arguments for %s: %v", decl.Name, err)
	}
	for _, required := range decl.RequiredArgs() {
		if _, present := args[required]; !present {
			return result.Errorf(result.KindValidationError, "missing required argument %q for %s", required, decl.Name)
		}
	}

	token, found, err := d.credentials.ActiveCredential(ctx, userID)
	if err != nil {
		log.Printf("Credential lookup failed for user %s: %v", userID, err)
		return result.Errorf(result.KindNetworkError, "credential store unavailable")
	}
	if !found {
		return result.Errorf(result.KindMissingCredential, "no active Notion integration for this user")
	}

	log.Printf("🛠️ Executing %s for user %s", decl.Name, userID)
	res := d.executor.Execute(ctx, decl, args, token)
	return d.normalizer.FormatForModel(decl, res)
}

// parseArguments decodes the model's raw argument JSON. Models routinely emit
// "" or "{}" for zero-argument calls; both decode to an empty map. Anything
// else that fails to decode as an object is a validation error.
func parseArguments(rawArgs string) (map[string]any, error) {
	trimmed := strings.TrimSpace(rawArgs)
	if trimmed == "" || trimmed == "null" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(trimmed), &args); err != nil {
		return nil, err
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}
