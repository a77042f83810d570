package director

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xaenox/planner-bot/internal/models"
)

// usageMax makes a limiter increment act as a plain counter.
const usageMax = 999999

// QuotaChecker is the rate-limiter surface the director consumes.
type QuotaChecker interface {
	Allow(ctx context.Context, key string, maxRequests int, window time.Duration) (bool, int)
}

// Limits are per-user caps on paid external calls.
type Limits struct {
	GPTPerHour     int
	GPTPerDay      int
	WhisperPerHour int
	WhisperPerDay  int
}

func DefaultLimits() Limits {
	return Limits{
		GPTPerHour:     50,
		GPTPerDay:      200,
		WhisperPerHour: 20,
		WhisperPerDay:  100,
	}
}

// Director routes parsing requests between the free local classifier and the
// paid GPT parser, balancing cost against accuracy and degrading to
// local-only when a user's quota is exhausted.
type Director struct {
	quota  QuotaChecker
	limits Limits
	logger *zap.Logger
}

func New(quota QuotaChecker, limits Limits, logger *zap.Logger) *Director {
	return &Director{
		quota:  quota,
		limits: limits,
		logger: logger,
	}
}

func newDecision(mode models.ProcessingMode, reason string) models.DirectorDecision {
	return models.DirectorDecision{
		Mode:                mode,
		Reason:              reason,
		ConfidenceThreshold: 0.7,
		MaxTokens:           1000,
		Temperature:         0.1,
	}
}

// DecideParsingMode picks the processing mode for one message. First
// matching rule wins: exhausted quota forces local-only, simple messages
// stay local, medium ones try local with a GPT fallback, and complex
// messages go straight to GPT.
func (d *Director) DecideParsingMode(ctx context.Context, userID int64, text string, isVoice, isForwarded bool) models.DirectorDecision {
	hourAllowed, hourRemaining := d.quota.Allow(ctx,
		fmt.Sprintf("gpt:hour:%d", userID), d.limits.GPTPerHour, time.Hour)
	dayAllowed, _ := d.quota.Allow(ctx,
		fmt.Sprintf("gpt:day:%d", userID), d.limits.GPTPerDay, 24*time.Hour)

	complexity := AnalyzeComplexity(text)

	d.logger.Debug("Routing decision inputs",
		zap.Int64("user_id", userID),
		zap.String("complexity", string(complexity)),
		zap.Bool("is_voice", isVoice),
		zap.Bool("is_forwarded", isForwarded),
		zap.Bool("gpt_hour_allowed", hourAllowed),
		zap.Bool("gpt_day_allowed", dayAllowed))

	if !hourAllowed || !dayAllowed {
		dec := newDecision(models.ModeLocalOnly,
			fmt.Sprintf("GPT quota reached (remaining: %d/hour)", hourRemaining))
		// No fallback available, accept lower confidence
		dec.ConfidenceThreshold = 0.5
		return dec
	}

	if complexity == models.ComplexitySimple {
		dec := newDecision(models.ModeLocalOnly, "Simple message pattern detected")
		dec.ConfidenceThreshold = 0.6
		return dec
	}

	if complexity == models.ComplexityMedium {
		return newDecision(models.ModeLocalWithFallback, "Medium complexity, local with fallback")
	}

	if isForwarded || complexity == models.ComplexityComplex {
		dec := newDecision(models.ModeGPTOnly, "Complex or forwarded message")
		dec.ConfidenceThreshold = 0.8
		dec.MaxTokens = 1500
		return dec
	}

	return newDecision(models.ModeLocalWithFallback, "Default processing mode")
}

// DecideTranscriptionMode gates voice transcription by the Whisper quotas.
// Transcription always needs the remote service, so an exhausted quota means
// queue-for-later rather than a local path.
func (d *Director) DecideTranscriptionMode(ctx context.Context, userID int64, audioDurationSeconds int) models.DirectorDecision {
	hourAllowed, _ := d.quota.Allow(ctx,
		fmt.Sprintf("whisper:hour:%d", userID), d.limits.WhisperPerHour, time.Hour)
	if !hourAllowed {
		dec := newDecision(models.ModeQueueForLater, "Whisper hourly limit reached")
		dec.DelaySeconds = 60
		return dec
	}

	dayAllowed, _ := d.quota.Allow(ctx,
		fmt.Sprintf("whisper:day:%d", userID), d.limits.WhisperPerDay, 24*time.Hour)
	if !dayAllowed {
		dec := newDecision(models.ModeQueueForLater, "Whisper daily limit reached")
		dec.DelaySeconds = 3600
		return dec
	}

	if audioDurationSeconds > 120 {
		d.logger.Info("Long audio message",
			zap.Int64("user_id", userID),
			zap.Int("duration_seconds", audioDurationSeconds))
	}

	return newDecision(models.ModeGPTOnly, "Transcription allowed")
}

// RecordUsage bumps the hour and day counters for a resource kind
// ("gpt", "whisper", "local") for later analytics.
func (d *Director) RecordUsage(ctx context.Context, userID int64, kind string) {
	d.quota.Allow(ctx, fmt.Sprintf("%s:hour:%d", kind, userID), usageMax, time.Hour)
	d.quota.Allow(ctx, fmt.Sprintf("%s:day:%d", kind, userID), usageMax, 24*time.Hour)
}

// ShouldAddConference suggests a video-conference provider for an event, or
// "" when none applies.
func (d *Director) ShouldAddConference(title string, participants []string) string {
	lower := strings.ToLower(title)

	if strings.Contains(lower, "zoom") || strings.Contains(lower, "зум") {
		return "zoom"
	}
	if strings.Contains(lower, "meet") || strings.Contains(lower, "мит") {
		return "google_meet"
	}

	for _, kw := range []string{"созвон", "звонок", "онлайн", "online", "remote", "удаленн"} {
		if strings.Contains(lower, kw) {
			return "google_meet"
		}
	}

	return ""
}
