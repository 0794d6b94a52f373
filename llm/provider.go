// Package llm defines the provider boundary the runtime talks to language
// models through. The core depends only on the request/response shapes here,
// not on any specific vendor.
package llm

import (
	"context"
)

// ModelRequirements constrain which model instance may serve a request.
type ModelRequirements struct {
	Capabilities       []string `json:"capabilities,omitempty"`
	PreferredSpeedTier int      `json:"preferred_speed_tier,omitempty"`
	MaxCostTier        int      `json:"max_cost_tier,omitempty"`
	MinMaxTokens       int      `json:"min_max_tokens,omitempty"`
}

type GenerationConfig struct {
	MaxTokens     int      `json:"max_tokens,omitempty"`
	Temperature   float64  `json:"temperature,omitempty"`
	TopP          float64  `json:"top_p,omitempty"`
	StopSequences []string `json:"stop_sequences,omitempty"`
	Stream        bool     `json:"stream,omitempty"`
}

type Request struct {
	ID                string            `json:"id"`
	Prompt            string            `json:"prompt"`
	SystemPrompt      string            `json:"system_prompt,omitempty"`
	ModelRequirements ModelRequirements `json:"model_requirements"`
	Generation        GenerationConfig  `json:"generation_config"`
	Context           map[string]any    `json:"context,omitempty"`
}

type Response struct {
	Content      string `json:"content"`
	Model        string `json:"model,omitempty"`
	InputTokens  int64  `json:"input_tokens,omitempty"`
	OutputTokens int64  `json:"output_tokens,omitempty"`
	Provider     string `json:"provider,omitempty"`
	Simulated    bool   `json:"simulated,omitempty"`
}

// Provider is one concrete language-model backend.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (*Response, error)
}
