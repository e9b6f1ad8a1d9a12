package tools

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/masaic-ai/open-responses-go/internal/apierror"
)

// ValidateArguments checks a tool call's arguments_json against the tool's
// declared JSON Schema, per spec §4.4 ("schema-aware tool-argument
// validation"). A nil/empty schema always validates. Mirrors the teacher's
// ToolValidator.ValidateParameters, rebuilt on jsonschema/v6 instead of a
// hand-rolled checker.
func ValidateArguments(schema json.RawMessage, argumentsJSON string) error {
	if len(schema) == 0 {
		return nil
	}

	var args any
	if err := json.Unmarshal([]byte(argumentsJSON), &args); err != nil {
		return apierror.Wrap(apierror.KindToolExecutionError, "tool arguments are not valid JSON", err)
	}

	var schemaDoc any
	if err := json.Unmarshal(schema, &schemaDoc); err != nil {
		return apierror.Wrap(apierror.KindInvalidConfiguration, "tool schema is not valid JSON", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("tool-schema.json", schemaDoc); err != nil {
		return apierror.Wrap(apierror.KindInvalidConfiguration, "tool schema rejected by compiler", err)
	}
	compiled, err := compiler.Compile("tool-schema.json")
	if err != nil {
		return apierror.Wrap(apierror.KindInvalidConfiguration, "tool schema failed to compile", err)
	}
	if err := compiled.Validate(args); err != nil {
		return apierror.Wrap(apierror.KindToolExecutionError, fmt.Sprintf("arguments failed schema validation: %v", err), err)
	}
	return nil
}
