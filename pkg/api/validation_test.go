package api

import (
	"strings"
	"testing"
)

func TestValidateChatRequest(t *testing.T) {
	cfg := DefaultValidationConfig()

	tests := []struct {
		name    string
		req     ChatRequest
		wantErr bool
	}{
		{
			"prompt only",
			ChatRequest{Prompt: "hello"},
			false,
		},
		{
			"valid messages",
			ChatRequest{Messages: []Turn{
				{Role: RoleSystem, Content: "be brief"},
				{Role: RoleUser, Content: "hi"},
			}},
			false,
		},
		{
			"empty request is structurally fine",
			ChatRequest{},
			false,
		},
		{
			"invalid role",
			ChatRequest{Messages: []Turn{{Role: "moderator", Content: "hi"}}},
			true,
		},
		{
			"empty role",
			ChatRequest{Messages: []Turn{{Role: "", Content: "hi"}}},
			true,
		},
		{
			"empty content allowed",
			ChatRequest{Messages: []Turn{{Role: RoleUser, Content: ""}}},
			false,
		},
		{
			"negative timeout",
			ChatRequest{Prompt: "hello", Timeout: -5},
			true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateChatRequest(&tt.req, cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateChatRequest() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && err.Kind != KindInvalidInput {
				t.Errorf("Kind = %q, want %q", err.Kind, KindInvalidInput)
			}
		})
	}
}

func TestValidateChatRequestLimits(t *testing.T) {
	cfg := ValidationConfig{MaxMessages: 2, MaxContentSize: 10}

	tests := []struct {
		name    string
		req     ChatRequest
		wantErr string
	}{
		{
			"too many messages",
			ChatRequest{Messages: []Turn{
				{Role: RoleUser, Content: "a"},
				{Role: RoleAssistant, Content: "b"},
				{Role: RoleUser, Content: "c"},
			}},
			"messages exceeds maximum",
		},
		{
			"oversized prompt",
			ChatRequest{Prompt: strings.Repeat("x", 11)},
			"prompt exceeds maximum",
		},
		{
			"oversized turn content",
			ChatRequest{Messages: []Turn{{Role: RoleUser, Content: strings.Repeat("x", 11)}}},
			"content exceeds maximum",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateChatRequest(&tt.req, cfg)
			if err == nil {
				t.Fatal("ValidateChatRequest() = nil, want error")
			}
			if !strings.Contains(err.Message, tt.wantErr) {
				t.Errorf("Message = %q, want substring %q", err.Message, tt.wantErr)
			}
		})
	}
}

func TestValidateChatRequestZeroLimitsDisabled(t *testing.T) {
	req := ChatRequest{Prompt: strings.Repeat("x", 1<<20)}
	if err := ValidateChatRequest(&req, ValidationConfig{}); err != nil {
		t.Errorf("ValidateChatRequest() with zero limits = %v, want nil", err)
	}
}
