// Package insights extracts structured profile and meeting information from
// call transcripts.
package insights

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/tidwall/gjson"

	"github.com/nexahq/nexa-backend/internal/app/domain/insight"
	"github.com/nexahq/nexa-backend/pkg/logger"
)

const systemPrompt = `You are an AI assistant that extracts detailed information and returns it in JSON format.
Extract the following fields and return them in a JSON object:

{
    "Name": "Full name if mentioned",
    "Email": "Email if mentioned",
    "Profession": "Role and company name, e.g. 'Co-founder, MedX AI (Healthcare Startup)'",
    "Bio_Components": {
        "Company": "Company name",
        "Experience": "Years of experience",
        "Industry": "Industry sector",
        "Background": "What they do and their expertise",
        "Achievements": "Specific achievements and metrics",
        "Current_Status": "Current company/product status"
    },
    "Networking Goal": "What they want to achieve in detail",
    "Meeting Type": "Type of meeting requested",
    "Proposed Meeting Date": "Any mentioned date",
    "Proposed Meeting Time": "Any mentioned time",
    "Call Summary": "Comprehensive overview of key points discussed"
}

Be specific and detailed in the Bio_Components section.
If a field is not mentioned in the transcript, use 'Not Mentioned' as the value.
Remember to return the response in valid JSON format.`

// Extractor produces an insight from a transcript.
type Extractor interface {
	Extract(ctx context.Context, transcript string) (insight.Insight, error)
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func(ctx context.Context, transcript string) (insight.Insight, error)

func (f ExtractorFunc) Extract(ctx context.Context, transcript string) (insight.Insight, error) {
	return f(ctx, transcript)
}

// OpenAIExtractor runs a JSON-mode chat completion over the transcript.
type OpenAIExtractor struct {
	client *openai.Client
	model  string
	log    *logger.Logger
}

// ExtractorConfig configures the OpenAI extractor.
type ExtractorConfig struct {
	APIKey  string
	BaseURL string // override for tests
	Model   string
	Timeout time.Duration
}

// NewOpenAIExtractor builds the extractor.
func NewOpenAIExtractor(cfg ExtractorConfig, log *logger.Logger) (*OpenAIExtractor, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("openai API key is required")
	}
	if log == nil {
		log = logger.NewDefault("insights")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = openai.GPT3Dot5Turbo1106
	}

	return &OpenAIExtractor{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
		log:    log,
	}, nil
}

// Extract runs the completion. Transcripts without content short-circuit to
// the default insight without an API call.
func (e *OpenAIExtractor) Extract(ctx context.Context, transcript string) (insight.Insight, error) {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" || transcript == "Not Available" {
		return insight.Default(), nil
	}

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       e.model,
		Temperature: 0.1,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: "Please analyze this transcript and return the information in JSON format:\n\n" + transcript},
		},
	})
	if err != nil {
		return insight.Insight{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return insight.Insight{}, fmt.Errorf("chat completion returned no choices")
	}

	content := resp.Choices[0].Message.Content
	if !gjson.Valid(content) {
		return insight.Insight{}, fmt.Errorf("chat completion returned invalid JSON")
	}

	e.log.WithContext(ctx).WithField("model", e.model).Debug("transcript extraction completed")
	return Parse(content), nil
}

// Parse builds a cleaned insight from the model's JSON output. Absent or
// placeholder values collapse to the sentinel.
func Parse(content string) insight.Insight {
	doc := gjson.Parse(content)
	return insight.Insight{
		Name:       cleanField(doc.Get("Name")),
		Email:      cleanField(doc.Get("Email")),
		Profession: cleanField(doc.Get("Profession")),
		Bio: insight.BioComponents{
			Company:       cleanField(doc.Get("Bio_Components.Company")),
			Experience:    cleanField(doc.Get("Bio_Components.Experience")),
			Industry:      cleanField(doc.Get("Bio_Components.Industry")),
			Background:    cleanField(doc.Get("Bio_Components.Background")),
			Achievements:  cleanField(doc.Get("Bio_Components.Achievements")),
			CurrentStatus: cleanField(doc.Get("Bio_Components.Current_Status")),
		},
		NetworkingGoal:      cleanField(doc.Get("Networking Goal")),
		MeetingType:         cleanField(doc.Get("Meeting Type")),
		ProposedMeetingDate: cleanField(doc.Get("Proposed Meeting Date")),
		ProposedMeetingTime: cleanField(doc.Get("Proposed Meeting Time")),
		CallSummary:         cleanField(doc.Get("Call Summary")),
	}
}

func cleanField(r gjson.Result) string {
	value := strings.TrimSpace(r.String())
	switch strings.ToLower(value) {
	case "", "none", "null", "undefined", "not mentioned":
		return insight.NotMentioned
	}
	return value
}
