// Package summary rates a finished conversation through the configured
// chat-completion endpoint and returns coaching feedback.
package summary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	openaimodel "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/aikawa-dev/companion/backend/internal/config"
	"github.com/aikawa-dev/companion/backend/internal/model/convo"
)

var (
	ErrEmptyTranscript  = errors.New("invalid transcript: provide an array of conversation messages")
	ErrUnparseableReply = errors.New("could not parse LLM response as JSON")
	ErrIncompleteReply  = errors.New("invalid response format from LLM")
)

// TranscriptEntry is one turn of the conversation under review.
type TranscriptEntry struct {
	Sender  string `json:"sender"`
	Content string `json:"content"`
}

// Result is the validated coaching verdict. Rating is always within [1, 5].
type Result struct {
	Summary           string `json:"summary"`
	Rating            int    `json:"rating"`
	RatingDescription string `json:"ratingDescription"`
}

// Service drives the summarize-and-rate chain.
type Service struct {
	cfg   config.LLMConfig
	chain compose.Runnable[map[string]any, *schema.Message]
}

// NewService compiles the prompt/model chain against the configured endpoint.
func NewService(ctx context.Context, cfg config.LLMConfig) (*Service, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("LLM API key not configured")
	}

	temperature := float32(0.7)
	maxTokens := 300

	chatModel, err := openaimodel.NewChatModel(ctx, &openaimodel.ChatModelConfig{
		BaseURL:     cfg.BaseURL(),
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		Timeout:     cfg.Timeout,
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.UserMessage("{prompt}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile summary chain: %w", err)
	}

	return &Service{cfg: cfg, chain: runnable}, nil
}

// SummarizeAndRate formats the transcript into the coaching prompt, invokes
// the model and validates the JSON verdict. customPrompt, when non-empty,
// replaces the built-in coaching instructions.
func (s *Service) SummarizeAndRate(ctx context.Context, transcript []TranscriptEntry, customPrompt string) (Result, error) {
	if len(transcript) == 0 {
		return Result{}, ErrEmptyTranscript
	}

	built := buildPrompt(transcript, customPrompt)

	reply, err := s.chain.Invoke(ctx, map[string]any{"prompt": built})
	if err != nil {
		return Result{}, fmt.Errorf("failed to run summary chain: %w", err)
	}

	result, err := parseVerdict(reply.Content)
	if err != nil {
		return Result{}, err
	}

	log.Printf("[summary] rated conversation of %d messages: %d/5", len(transcript), result.Rating)
	return result, nil
}

// parseVerdict extracts the first JSON object from the model's text reply,
// tolerating markdown fences around it, and clamps the rating into [1, 5].
func parseVerdict(content string) (Result, error) {
	content = strings.TrimSpace(content)

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end < start {
		return Result{}, ErrUnparseableReply
	}

	var raw struct {
		Summary           string  `json:"summary"`
		Rating            float64 `json:"rating"`
		RatingDescription string  `json:"ratingDescription"`
	}
	if err := json.Unmarshal([]byte(content[start:end+1]), &raw); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrUnparseableReply, err)
	}

	if raw.Summary == "" || raw.Rating == 0 || raw.RatingDescription == "" {
		return Result{}, ErrIncompleteReply
	}

	rating := int(raw.Rating)
	if rating < 1 {
		rating = 1
	}
	if rating > 5 {
		rating = 5
	}

	return Result{
		Summary:           raw.Summary,
		Rating:            rating,
		RatingDescription: raw.RatingDescription,
	}, nil
}

func formatTranscript(transcript []TranscriptEntry) string {
	lines := make([]string, 0, len(transcript))
	for _, msg := range transcript {
		role := "AI"
		if convo.NormalizeSender(msg.Sender) == convo.SenderUser {
			role = "User"
		}
		lines = append(lines, role+": "+msg.Content)
	}
	return strings.Join(lines, "\n")
}

const coachingInstructions = `You are an AI Dating Coach analyzing a conversation between a user and an AI anime girlfriend assistant. Your goal is to help the user improve their conversation and relationship-building skills.

Please provide:
1. A brief coaching summary of the conversation (2-3 sentences focusing on what went well and areas for growth)
2. A rating from 1-5 on the user's conversation skills, based on:
   - Active listening and asking engaging questions
   - Showing genuine interest and emotional intelligence
   - Authentic self-expression and vulnerability
   - Respectful communication and positive energy
   - Building connection and rapport

Rating descriptions:
1 = Needs Work - Very short responses, no questions asked, minimal effort to connect
2 = Developing - Some engagement but lacks depth, few follow-up questions, could show more interest
3 = Good Foundation - Polite and friendly, asks some questions, shows basic conversational skills
4 = Strong Connection - Engaging and thoughtful, shares personal details, asks meaningful questions, good emotional awareness
5 = Exceptional - Natural conversationalist, creates deep emotional connection, excellent listening, authentic vulnerability, makes the other person feel truly heard and valued`

const verdictFormat = `Respond ONLY with a valid JSON object in this exact format:
{
  "summary": "Brief coaching feedback here focusing on strengths and growth areas",
  "rating": 3,
  "ratingDescription": "Good Foundation - Polite and friendly, asks some questions, shows basic conversational skills"
}`

func buildPrompt(transcript []TranscriptEntry, customPrompt string) string {
	instructions := coachingInstructions
	if customPrompt != "" {
		instructions = customPrompt
	}

	return fmt.Sprintf("%s\n\nConversation:\n%s\n\n%s", instructions, formatTranscript(transcript), verdictFormat)
}
