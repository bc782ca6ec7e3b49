package providers

import (
	"testing"

	"github.com/outpostrun/conductor/pkg/models"
)

func TestOpenAICompatibleConvertMessages(t *testing.T) {
	p, err := newOpenAICompatibleProvider("test", "key", "", "", true)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	msgs, err := p.convertMessages([]models.Message{
		{Role: models.RoleUser, Content: "hi"},
		{Role: models.RoleAssistant, Content: "", ToolCalls: []models.ToolCall{
			{ID: "call-1", Name: "lookup", Arguments: `{"q":"x"}`},
		}},
		{Role: models.RoleTool, ToolCallID: "call-1", Content: "result"},
	}, "be terse")
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if len(msgs) != 4 {
		t.Fatalf("messages = %d, want 4", len(msgs))
	}
	if msgs[0].Role != "system" || msgs[0].Content != "be terse" {
		t.Errorf("system message mismatch: %+v", msgs[0])
	}
	if len(msgs[2].ToolCalls) != 1 || msgs[2].ToolCalls[0].Function.Name != "lookup" {
		t.Errorf("assistant tool call missing: %+v", msgs[2])
	}
	if msgs[3].Role != "tool" || msgs[3].ToolCallID != "call-1" {
		t.Errorf("tool result message mismatch: %+v", msgs[3])
	}
}

func TestNewDeepSeekProviderRequiresAPIKey(t *testing.T) {
	if _, err := NewDeepSeekProvider(DeepSeekConfig{}); err == nil {
		t.Fatalf("expected error for missing api key")
	}
}

func TestNewPerplexityProviderDisablesTools(t *testing.T) {
	provider, err := NewPerplexityProvider(PerplexityConfig{APIKey: "key"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if provider.SupportsTools() {
		t.Errorf("expected perplexity to not support tools")
	}
	if provider.Name() != "perplexity" {
		t.Errorf("name = %q, want perplexity", provider.Name())
	}
}

func TestNewXAIProviderSupportsTools(t *testing.T) {
	provider, err := NewXAIProvider(XAIConfig{APIKey: "key"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if !provider.SupportsTools() {
		t.Errorf("expected xai to support tools")
	}
}
