package openai

import (
	"fmt"
	"strings"

	"github.com/casualjim/restream/pkg/jsonx"
	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/shared"
)

// ToolSchema is the slice of a schema needed to advertise it in a chat
// completion request. funcschema's schemas implement it.
type ToolSchema interface {
	Name() string
	Description() string
	JSONSchema() *jsonschema.Schema
}

// ToolParams converts schemas to request tool definitions.
func ToolParams(schemas ...ToolSchema) ([]openai.ChatCompletionToolParam, error) {
	tools := make([]openai.ChatCompletionToolParam, len(schemas))
	for i, schema := range schemas {
		jv, err := jsonx.ToDynamicJSON(schema.JSONSchema())
		if err != nil {
			return nil, fmt.Errorf("failed to convert tool %s schema: %w", schema.Name(), err)
		}

		def := openai.FunctionDefinitionParam{
			Name:       openai.String(schema.Name()),
			Parameters: openai.F(shared.FunctionParameters(jv)),
		}
		if strings.TrimSpace(schema.Description()) != "" {
			def.Description = openai.String(schema.Description())
		}

		tools[i] = openai.ChatCompletionToolParam{
			Type:     openai.F(openai.ChatCompletionToolTypeFunction),
			Function: openai.F(def),
		}
	}
	return tools, nil
}
