package planner

import (
	"fmt"

	"github.com/kaptinlin/jsonschema"
)

// planSchema is the shape a completion must have to become a Plan. Step
// contents beyond their JSON types are left to the executor, which reports
// unknown tools and bad arguments as failed steps.
const planSchema = `{
  "type": "object",
  "required": ["steps"],
  "properties": {
    "steps": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "properties": {
          "function": {"type": "string"},
          "arguments": {"type": ["object", "null"]},
          "purpose": {"type": ["string", "null"]},
          "optional": {"type": ["boolean", "null"]}
        }
      }
    }
  }
}`

func compilePlanSchema() (*jsonschema.Schema, error) {
	compiled, err := jsonschema.NewCompiler().Compile([]byte(planSchema))
	if err != nil {
		return nil, fmt.Errorf("compile plan schema: %w", err)
	}
	return compiled, nil
}
