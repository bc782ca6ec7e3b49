package toolconv

import (
	"github.com/outpostrun/conductor/internal/agent"
	openai "github.com/sashabaranov/go-openai"
)

// ToOpenAITools converts registered tool descriptors to OpenAI function schema.
func ToOpenAITools(tools []agent.ToolDescriptor) []openai.Tool {
	result := make([]openai.Tool, len(tools))
	for i, tool := range tools {
		result[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Schema(),
			},
		}
	}
	return result
}
