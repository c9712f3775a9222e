package react

import (
	"encoding/json"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestCoerceParamsProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("object input passes through untouched", prop.ForAll(
		func(key, value string) bool {
			input := map[string]any{key: value}
			params, err := coerceParams(input, []string{"a", "b"})
			return err == nil && len(params) == 1 && params[key] == value
		},
		gen.Identifier(),
		gen.AnyString(),
	))

	properties.Property("json object strings decode regardless of parameter count", prop.ForAll(
		func(value string) bool {
			raw, _ := json.Marshal(map[string]any{"k": value})
			params, err := coerceParams(string(raw), nil)
			return err == nil && params["k"] == value
		},
		gen.AnyString(),
	))

	properties.Property("non-json strings bind to a single declared parameter", prop.ForAll(
		func(value string) bool {
			if json.Valid([]byte(value)) {
				return true
			}
			params, err := coerceParams(value, []string{"only"})
			return err == nil && params["only"] == value
		},
		gen.AnyString(),
	))

	properties.Property("non-json strings with several parameters never guess", prop.ForAll(
		func(value string) bool {
			if json.Valid([]byte(value)) {
				return true
			}
			_, err := coerceParams(value, []string{"a", "b"})
			return err != nil
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
