package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sashabaranov/go-openai"

	"github.com/scam-scanner/internal/config"
	"github.com/scam-scanner/internal/retry"
	"github.com/scam-scanner/internal/types"
)

// maxScenarioSize caps the scenario text sent to the model.
const maxScenarioSize = 8000

// OpenAIClient implements LLMClient with the OpenAI chat completion API.
type OpenAIClient struct {
	client      *openai.Client
	modelName   string
	maxTokens   int
	temperature float32
}

// NewOpenAIClient creates a new OpenAI-backed LLM client
func NewOpenAIClient(cfg *config.OpenAIConfig) *OpenAIClient {
	return &OpenAIClient{
		client:      openai.NewClient(cfg.APIKey),
		modelName:   cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: float32(cfg.Temperature),
	}
}

const explainSystemPrompt = "You are a crypto educator. Respond only with JSON."

const explainPromptFormat = `Explain the crypto term %q for a %s audience.
Respond with a JSON object containing:
- explanation: string (the explanation, pitched at the audience level)
- related_terms: array of up to 3 related term strings

Respond only with the JSON object and nothing else.`

var audienceDescriptions = map[types.AudienceType]string{
	types.AudienceBeginner:     "complete beginner, avoid jargon, use a simple analogy",
	types.AudienceIntermediate: "crypto-curious user who knows the basics",
	types.AudienceExpert:       "technical expert, be precise and concise",
}

// ExplainTerm explains a crypto term at the requested depth
func (c *OpenAIClient) ExplainTerm(ctx context.Context, term string, audience types.AudienceType) (*TermExplanation, error) {
	desc, ok := audienceDescriptions[audience]
	if !ok {
		desc = audienceDescriptions[types.AudienceBeginner]
	}

	content, err := c.complete(ctx, explainSystemPrompt, fmt.Sprintf(explainPromptFormat, term, desc))
	if err != nil {
		return nil, err
	}

	var explanation TermExplanation
	if err := parseJSONResponse(content, &explanation); err != nil {
		return nil, err
	}
	if explanation.Explanation == "" {
		return nil, fmt.Errorf("model returned empty explanation")
	}

	return &explanation, nil
}

const assessSystemPrompt = "You are a crypto scam analyst helping consumers avoid fraud. Respond only with JSON."

const assessPromptFormat = `Assess the following situation for signs of a crypto scam.
Respond with a JSON object containing:
- risk_level: one of "low", "medium", "high", "critical"
- summary: string (2-3 sentence plain-language verdict)
- red_flags: array of strings (specific warning signs found, empty if none)
- safety_tips: array of strings (concrete next steps for the user)

Situation:
%s
%s
Respond only with the JSON object and nothing else.`

// truncateScenario caps the scenario text, backing up to a rune boundary so a
// multi-byte character is never split mid-sequence.
func truncateScenario(s string) string {
	if len(s) <= maxScenarioSize {
		return s
	}
	cut := maxScenarioSize
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "\n[truncated]"
}

// AssessScenario judges a scam scenario, optionally informed by on-chain evidence
func (c *OpenAIClient) AssessScenario(ctx context.Context, prompt *RiskPrompt) (*RiskAssessment, error) {
	scenario := truncateScenario(prompt.Scenario)

	onChain := ""
	if prompt.OnChainContext != "" {
		onChain = "\nOn-chain evidence:\n" + prompt.OnChainContext + "\n"
	}

	content, err := c.complete(ctx, assessSystemPrompt, fmt.Sprintf(assessPromptFormat, scenario, onChain))
	if err != nil {
		return nil, err
	}

	var assessment RiskAssessment
	if err := parseJSONResponse(content, &assessment); err != nil {
		return nil, err
	}
	if !assessment.RiskLevel.Valid() {
		return nil, fmt.Errorf("model returned unknown risk level: %q", assessment.RiskLevel)
	}

	return &assessment, nil
}

// completionRetry bounds transient upstream failures to two quick attempts;
// the caller is an interactive request and cannot wait out a long backoff.
var completionRetry = &retry.Config{
	MaxAttempts:  2,
	InitialDelay: 500 * time.Millisecond,
	MaxDelay:     2 * time.Second,
	Multiplier:   2.0,
}

func (c *OpenAIClient) complete(ctx context.Context, system, user string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.modelName,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	var content string
	err := retry.Do(ctx, completionRetry, func(ctx context.Context, attempt int) error {
		resp, err := c.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return fmt.Errorf("failed to create chat completion: %w", err)
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("empty response from model")
		}
		content = resp.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return "", err
	}

	return content, nil
}

// parseJSONResponse unmarshals the model output, falling back to the outermost
// brace-delimited substring when the model wraps JSON in prose.
func parseJSONResponse(content string, dest interface{}) error {
	if err := json.Unmarshal([]byte(content), dest); err == nil {
		return nil
	}

	start := strings.IndexByte(content, '{')
	end := strings.LastIndexByte(content, '}')
	if start < 0 || end <= start {
		return fmt.Errorf("failed to extract JSON from model response")
	}

	if err := json.Unmarshal([]byte(content[start:end+1]), dest); err != nil {
		return fmt.Errorf("failed to parse model response as JSON: %w", err)
	}
	return nil
}
