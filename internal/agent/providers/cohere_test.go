package providers

import (
	"testing"

	"github.com/outpostrun/conductor/internal/agent"
	"github.com/outpostrun/conductor/pkg/models"
)

func TestConvertCohereMessages(t *testing.T) {
	req := &agent.CompletionRequest{
		System: "be terse",
		Messages: []models.Message{
			{Role: models.RoleUser, Content: "first question"},
			{Role: models.RoleAssistant, Content: "first answer"},
			{Role: models.RoleUser, Content: "second question"},
		},
	}

	preamble, message, history := convertCohereMessages(req)
	if preamble != "be terse" {
		t.Errorf("preamble = %q, want %q", preamble, "be terse")
	}
	if message != "second question" {
		t.Errorf("message = %q, want last user message", message)
	}
	if len(history) != 2 {
		t.Fatalf("history = %d entries, want 2", len(history))
	}
	if history[0].Role != "USER" || history[0].Message != "first question" {
		t.Errorf("history[0] = %+v", history[0])
	}
	if history[1].Role != "CHATBOT" || history[1].Message != "first answer" {
		t.Errorf("history[1] = %+v", history[1])
	}
}

func TestNewCohereProviderRequiresAPIKey(t *testing.T) {
	if _, err := NewCohereProvider(CohereConfig{}); err == nil {
		t.Fatalf("expected error for missing api key")
	}
}

func TestNewCohereProviderDefaults(t *testing.T) {
	p, err := NewCohereProvider(CohereConfig{APIKey: "test-key"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if p.Name() != "cohere" {
		t.Errorf("name = %q, want cohere", p.Name())
	}
	if p.defaultModel != "command-r-plus" {
		t.Errorf("default model = %q", p.defaultModel)
	}
	if p.SupportsTools() {
		t.Errorf("expected SupportsTools to be false")
	}
}
