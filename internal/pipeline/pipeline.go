package pipeline

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xaenox/planner-bot/internal/classifier"
	"github.com/xaenox/planner-bot/internal/director"
	"github.com/xaenox/planner-bot/internal/models"
	"github.com/xaenox/planner-bot/internal/parser"
)

const localOnlyClarification = "Не удалось надежно распознать сообщение. Попробуйте сформулировать проще, например: \"завтра в 15:00 созвон с Петровым\"."

// GPTParser is the escalation target; satisfied by parser.GPTParser.
type GPTParser interface {
	Parse(ctx context.Context, req parser.Request) (models.ParsedContent, error)
}

// Pipeline is the message-understanding entry point: the director picks a
// processing mode, the local classifier runs for free, and the GPT parser is
// invoked only when escalation is required.
type Pipeline struct {
	director *director.Director
	local    *classifier.LocalClassifier
	gpt      GPTParser
	logger   *zap.Logger
	now      func() time.Time
}

// Request is one inbound message to parse. Voice has already been
// transcribed to text by the caller.
type Request struct {
	UserID        int64
	Text          string
	UserTimezone  string
	ForwardedFrom string
	IsVoice       bool
}

func New(d *director.Director, local *classifier.LocalClassifier, gpt GPTParser, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		director: d,
		local:    local,
		gpt:      gpt,
		logger:   logger,
		now:      time.Now,
	}
}

// ParseMessage classifies and extracts structured content from a message.
// Ambiguity comes back as an unclear result, never as an error; the only
// errors returned are retryable infrastructure failures from the GPT call.
func (p *Pipeline) ParseMessage(ctx context.Context, req Request) (models.ParsedContent, error) {
	decision := p.director.DecideParsingMode(ctx, req.UserID, req.Text, req.IsVoice, req.ForwardedFrom != "")

	p.logger.Info("Parsing message",
		zap.Int64("user_id", req.UserID),
		zap.String("mode", string(decision.Mode)),
		zap.String("reason", decision.Reason))

	switch decision.Mode {
	case models.ModeGPTOnly:
		return p.parseWithGPT(ctx, req, decision)

	case models.ModeLocalOnly:
		local := p.local.Classify(req.Text, req.UserTimezone, p.now())
		p.director.RecordUsage(ctx, req.UserID, "local")

		if local.Success && local.Confidence >= decision.ConfidenceThreshold {
			return p.finalize(local, req), nil
		}

		// No fallback available under this mode; ask the user instead.
		clarification := local.ClarificationNeeded
		if clarification == "" {
			clarification = localOnlyClarification
		}
		return p.finalize(models.Unclear(local.Confidence, clarification), req), nil

	default: // models.ModeLocalWithFallback
		local := p.local.Classify(req.Text, req.UserTimezone, p.now())
		p.director.RecordUsage(ctx, req.UserID, "local")

		if local.Success && !local.NeedsEscalation && local.Confidence >= decision.ConfidenceThreshold {
			return p.finalize(local, req), nil
		}
		return p.parseWithGPT(ctx, req, decision)
	}
}

func (p *Pipeline) parseWithGPT(ctx context.Context, req Request, decision models.DirectorDecision) (models.ParsedContent, error) {
	result, err := p.gpt.Parse(ctx, parser.Request{
		Text:          req.Text,
		UserTimezone:  req.UserTimezone,
		ForwardedFrom: req.ForwardedFrom,
		MaxTokens:     decision.MaxTokens,
		Temperature:   decision.Temperature,
	})
	if err != nil {
		return models.ParsedContent{}, err
	}

	p.director.RecordUsage(ctx, req.UserID, "gpt")
	return p.finalize(result, req), nil
}

// finalize enforces the output invariants: bounded field lengths, non-nil
// participants, a clarification on events without a start time, and
// non-empty content on notes.
func (p *Pipeline) finalize(result models.ParsedContent, req Request) models.ParsedContent {
	result.Title = bound(result.Title)
	result.Location = bound(result.Location)
	result.NoteContent = bound(result.NoteContent)
	result.ClarificationNeeded = bound(result.ClarificationNeeded)

	if result.Participants == nil {
		result.Participants = []string{}
	}
	if result.DurationMinutes <= 0 {
		result.DurationMinutes = 60
	}

	switch result.ContentType {
	case models.ContentEvent:
		if result.StartDatetime == nil && result.ClarificationNeeded == "" {
			result.ClarificationNeeded = localOnlyClarification
		}
	case models.ContentNote:
		if result.NoteContent == "" && result.Title == "" {
			result.NoteContent = bound(strings.TrimSpace(req.Text))
		}
	}

	return result
}

func bound(s string) string {
	runes := []rune(s)
	if len(runes) > models.MaxFieldLength {
		return string(runes[:models.MaxFieldLength])
	}
	return s
}
