// Package extract turns free-form model output into typed values. A
// response that fails to parse or validate is handed to a heuristic
// fallback, so callers always get a value back together with a flag
// saying how much to trust it.
package extract

import (
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Schema describes one structured output: how to validate a parsed value and
// how to recover one from text when parsing fails.
type Schema[T any] interface {
	// Name identifies the schema in logs.
	Name() string
	// Validate checks a decoded value and may normalize it in place.
	Validate(v *T) error
	// Fallback recovers a best-effort value from text. The bool is false
	// when nothing useful was found.
	Fallback(text string) (T, bool)
}

// Result is the outcome of Extract. Degraded is set whenever the value came
// from the fallback path; Empty is set when the fallback found nothing.
type Result[T any] struct {
	Value    T
	Degraded bool
	Empty    bool
	Raw      string
	Problem  string
}

type options struct {
	fallbackText string
	useFallback  bool
}

// Option configures Extract.
type Option func(*options)

// WithFallbackText makes the heuristic fallback read text instead of the raw
// model output (for instance the page the model was asked to summarize).
func WithFallbackText(text string) Option {
	return func(o *options) {
		o.fallbackText = text
		o.useFallback = true
	}
}

// Extract parses raw as JSON for schema, validates it and falls back to the
// schema's heuristics on any problem. It never fails: panics raised by schema
// code are turned into an empty degraded result.
func Extract[T any](raw string, schema Schema[T], opts ...Option) (res Result[T]) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("extract: schema panicked",
				zap.String("schema", schema.Name()),
				zap.Any("panic", r),
			)
			var zero T
			res = Result[T]{
				Value:    zero,
				Degraded: true,
				Empty:    true,
				Raw:      raw,
				Problem:  fmt.Sprintf("panic: %v", r),
			}
		}
	}()

	problem := parse(raw, schema, &res.Value)
	if problem == "" {
		res.Raw = raw
		return res
	}

	source := raw
	if o.useFallback {
		source = o.fallbackText
	}
	val, ok := schema.Fallback(source)

	zap.L().Debug("extract: using fallback",
		zap.String("schema", schema.Name()),
		zap.String("problem", problem),
		zap.Bool("recovered", ok),
	)

	return Result[T]{
		Value:    val,
		Degraded: true,
		Empty:    !ok,
		Raw:      raw,
		Problem:  problem,
	}
}

func parse[T any](raw string, schema Schema[T], dst *T) string {
	if strings.TrimSpace(raw) == "" {
		return "empty output"
	}
	cleaned := cleanJSON(raw)
	if err := json.Unmarshal([]byte(cleaned), dst); err != nil {
		return "decode: " + err.Error()
	}
	if err := schema.Validate(dst); err != nil {
		return "validate: " + err.Error()
	}
	return ""
}

// cleanJSON attempts to extract a JSON object or array from text that may
// contain markdown code fences or surrounding prose.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	// Strip markdown code fences.
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimPrefix(text, "json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	open, closing := "{", "}"
	objStart := strings.Index(text, "{")
	arrStart := strings.Index(text, "[")
	if arrStart >= 0 && (objStart < 0 || arrStart < objStart) {
		open, closing = "[", "]"
	}

	start := strings.Index(text, open)
	end := strings.LastIndex(text, closing)
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}
