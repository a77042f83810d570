package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xaenox/planner-bot/internal/classifier"
	"github.com/xaenox/planner-bot/internal/llm"
	"github.com/xaenox/planner-bot/internal/models"
)

const promptTemplate = `You are a message parser for a calendar assistant. Extract event or note information from user messages.

Current datetime: %s
User timezone: %s
%s
Analyze the message and return ONLY valid JSON:
{
  "content_type": "event" | "note" | "unclear",
  "confidence": 0.0-1.0,

  "title": "event/note title",
  "start_datetime": "ISO 8601 with timezone or null",
  "end_datetime": "ISO 8601 with timezone or null",
  "duration_minutes": 60,
  "location": "location or null",
  "participants": ["names or emails"],

  "note_content": "for notes only",

  "clarification_needed": "what's missing, if unclear"
}

Rules:
- If no time specified, set start_datetime to null
- Default duration: 60 minutes
- "завтра" = tomorrow, "послезавтра" = day after tomorrow
- "после обеда" = 14:00, "утром" = 10:00, "вечером" = 19:00
- "на следующей неделе" = next Monday
- Keywords "идея", "мысль", "заметка", "запомни" → content_type = "note"
- Keywords with date/time + action/person → content_type = "event"
- Return ONLY JSON, no markdown, no explanation`

const decodeFailureClarification = "Не удалось разобрать сообщение. Попробуйте переформулировать."

// GPTParser sends the message to a language model with a fixed-format
// instruction prompt and validates the JSON reply into the canonical parsed
// shape. It is only invoked when the director requires escalation.
type GPTParser struct {
	client llm.Client
	logger *zap.Logger
	now    func() time.Time
}

// Request carries the per-call parameters; token budget and temperature come
// from the director's decision.
type Request struct {
	Text          string
	UserTimezone  string
	ForwardedFrom string
	MaxTokens     int
	Temperature   float32
}

func New(client llm.Client, logger *zap.Logger) *GPTParser {
	return &GPTParser{
		client: client,
		logger: logger,
		now:    time.Now,
	}
}

// Parse returns a terminal result: malformed model output becomes an unclear
// result instead of an error, so bad JSON can never crash the pipeline.
// Transport and auth failures propagate to the caller as retryable errors.
func (p *GPTParser) Parse(ctx context.Context, req Request) (models.ParsedContent, error) {
	tz := req.UserTimezone
	if tz == "" {
		tz = classifier.DefaultTimezone
	}

	forwarded := ""
	if req.ForwardedFrom != "" {
		forwarded = fmt.Sprintf("Message forwarded from: %s\n", req.ForwardedFrom)
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1000
	}
	temperature := req.Temperature
	if temperature <= 0 {
		// Low temperature: determinism over creativity
		temperature = 0.1
	}

	prompt := fmt.Sprintf(promptTemplate, p.now().Format(time.RFC3339), tz, forwarded)

	resp, err := p.client.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: prompt,
		UserText:     req.Text,
		Temperature:  temperature,
		MaxTokens:    maxTokens,
	})
	if err != nil {
		return models.ParsedContent{}, fmt.Errorf("gpt parse failed: %w", err)
	}

	p.logger.Debug("GPT response received",
		zap.Int("total_tokens", resp.TotalTokens))

	return p.decode(resp.Content, tz), nil
}

type gptPayload struct {
	ContentType         string   `json:"content_type"`
	Confidence          float64  `json:"confidence"`
	Title               string   `json:"title"`
	StartDatetime       string   `json:"start_datetime"`
	EndDatetime         string   `json:"end_datetime"`
	DurationMinutes     int      `json:"duration_minutes"`
	Location            string   `json:"location"`
	Participants        []string `json:"participants"`
	NoteContent         string   `json:"note_content"`
	ClarificationNeeded string   `json:"clarification_needed"`
}

func (p *GPTParser) decode(raw, tz string) models.ParsedContent {
	cleaned := stripCodeFences(strings.TrimSpace(raw))

	var payload gptPayload
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		p.logger.Error("Failed to parse GPT response as JSON",
			zap.Error(err),
			zap.String("response", cleaned))
		return models.Unclear(0.0, decodeFailureClarification)
	}

	result := models.ParsedContent{
		ContentType:         validateContentType(payload.ContentType),
		Confidence:          clamp(payload.Confidence),
		Title:               payload.Title,
		DurationMinutes:     payload.DurationMinutes,
		Location:            payload.Location,
		Participants:        payload.Participants,
		NoteContent:         payload.NoteContent,
		ClarificationNeeded: payload.ClarificationNeeded,
	}
	if result.DurationMinutes <= 0 {
		result.DurationMinutes = 60
	}
	if result.Participants == nil {
		result.Participants = []string{}
	}

	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.UTC
	}
	result.StartDatetime = parseDatetime(payload.StartDatetime, loc)
	result.EndDatetime = parseDatetime(payload.EndDatetime, loc)

	if result.StartDatetime != nil && result.EndDatetime == nil {
		end := result.StartDatetime.Add(time.Duration(result.DurationMinutes) * time.Minute)
		result.EndDatetime = &end
	}

	switch result.ContentType {
	case models.ContentEvent:
		result.Success = result.StartDatetime != nil
		if !result.Success && result.ClarificationNeeded == "" {
			result.ClarificationNeeded = decodeFailureClarification
		}
	case models.ContentNote:
		result.Success = result.NoteContent != "" || result.Title != ""
	}

	return result
}

// stripCodeFences removes optional markdown fencing the model sometimes
// wraps around its JSON despite instructions.
func stripCodeFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	s = strings.TrimPrefix(strings.TrimSpace(s), "json")
	return strings.TrimSpace(s)
}

func validateContentType(s string) models.ContentType {
	switch models.ContentType(s) {
	case models.ContentEvent, models.ContentNote, models.ContentUnclear:
		return models.ContentType(s)
	}
	return models.ContentUnclear
}

func parseDatetime(s string, loc *time.Location) *time.Time {
	if s == "" || s == "null" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t
	}
	// Some replies omit the offset; interpret those in the user's timezone.
	if t, err := time.ParseInLocation("2006-01-02T15:04:05", s, loc); err == nil {
		return &t
	}
	return nil
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
