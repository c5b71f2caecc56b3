package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/go-playground/validator/v10"
)

// validate checks struct tags on decoded extraction results.
// A single instance caches parsed struct metadata.
var validate = validator.New(validator.WithRequiredStructEnabled())

// jsonOnlyInstruction is appended to every extraction request so the model
// answers with a bare object rather than prose around one.
const jsonOnlyInstruction = "Respond with a single JSON object only. No prose, no markdown fences, no explanation outside the object."

// ExtractTyped is the structured-extraction port: it sends the system prompt
// plus messages, extracts a JSON object from the reply, decodes it into T,
// and validates it against T's struct tags.
//
// Transport failures are returned as-is. Anything between "the model
// answered" and "the answer conforms to T" is a *SchemaViolationError, so
// callers can branch on the failure class without inspecting the text.
func ExtractTyped[T any](ctx context.Context, c Completer, capability, system string, msgs []Message) (*T, error) {
	all := make([]Message, 0, len(msgs)+2)
	all = append(all, Message{Role: "system", Content: system + "\n\n" + jsonOnlyInstruction})
	all = append(all, msgs...)

	// Deterministic output for schema-bound calls.
	temp := 0.0
	resp, err := c.Complete(ctx, Request{
		Capability:  capability,
		Messages:    all,
		Temperature: &temp,
	})
	if err != nil {
		return nil, fmt.Errorf("extraction request: %w", err)
	}

	return DecodeTyped[T](resp.Content)
}

// DecodeTyped decodes and validates a raw model reply into T.
// Split out from ExtractTyped so fixture-driven tests can exercise the
// decode/validate boundary without a Completer.
func DecodeTyped[T any](content string) (*T, error) {
	schema := reflect.TypeFor[T]().Name()

	raw := ExtractJSON(content)
	if raw == "" {
		return nil, NewSchemaViolationError(schema, content, fmt.Errorf("no JSON object in response"))
	}

	var out T
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, NewSchemaViolationError(schema, raw, fmt.Errorf("decode: %w", err))
	}

	if err := validate.Struct(&out); err != nil {
		return nil, NewSchemaViolationError(schema, raw, fmt.Errorf("validate: %w", err))
	}

	return &out, nil
}
