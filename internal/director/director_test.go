package director

import (
	"context"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/xaenox/planner-bot/internal/models"
)

// fakeQuota denies every key with a prefix from denied, allows the rest.
type fakeQuota struct {
	denied []string
}

func (f *fakeQuota) Allow(ctx context.Context, key string, maxRequests int, window time.Duration) (bool, int) {
	for _, p := range f.denied {
		if strings.HasPrefix(key, p) {
			return false, 0
		}
	}
	return true, maxRequests - 1
}

func TestDecideParsingModeQuotaExhaustedIsLocalOnly(t *testing.T) {
	d := New(&fakeQuota{denied: []string{"gpt:hour:"}}, DefaultLimits(), zap.NewNop())
	ctx := context.Background()

	// Exhausted quota wins over any complexity.
	for _, text := range []string{
		"завтра в 15:00 созвон с Петровым",
		"если успеем, перенести встречу и напомни за час до",
		"обычное сообщение средней длины",
	} {
		dec := d.DecideParsingMode(ctx, 1, text, false, false)
		if dec.Mode != models.ModeLocalOnly {
			t.Fatalf("text %q: expected local_only under exhausted quota, got %s", text, dec.Mode)
		}
		if dec.ConfidenceThreshold != 0.5 {
			t.Fatalf("expected relaxed threshold 0.5, got %f", dec.ConfidenceThreshold)
		}
	}
}

func TestDecideParsingModeDailyQuotaAlsoBlocks(t *testing.T) {
	d := New(&fakeQuota{denied: []string{"gpt:day:"}}, DefaultLimits(), zap.NewNop())

	dec := d.DecideParsingMode(context.Background(), 1, "перенести встречу если получится", false, false)
	if dec.Mode != models.ModeLocalOnly {
		t.Fatalf("expected local_only under exhausted daily quota, got %s", dec.Mode)
	}
}

func TestDecideParsingModeByComplexity(t *testing.T) {
	d := New(&fakeQuota{}, DefaultLimits(), zap.NewNop())
	ctx := context.Background()

	cases := []struct {
		text          string
		forwarded     bool
		wantMode      models.ProcessingMode
		wantThreshold float64
	}{
		{"завтра в 15:00 созвон с Петровым", false, models.ModeLocalOnly, 0.6},
		{"надо встретиться по проекту на неделе", false, models.ModeLocalWithFallback, 0.7},
		{"если успеем, перенести встречу и напомни за час до", false, models.ModeGPTOnly, 0.8},
		{"если успеем, перенести встречу и напомни за час до", true, models.ModeGPTOnly, 0.8},
	}

	for _, tc := range cases {
		dec := d.DecideParsingMode(ctx, 1, tc.text, false, tc.forwarded)
		if dec.Mode != tc.wantMode {
			t.Errorf("text %q: expected mode %s, got %s (%s)", tc.text, tc.wantMode, dec.Mode, dec.Reason)
		}
		if dec.ConfidenceThreshold != tc.wantThreshold {
			t.Errorf("text %q: expected threshold %f, got %f", tc.text, tc.wantThreshold, dec.ConfidenceThreshold)
		}
	}
}

func TestDecideParsingModeForwardedMediumKeepsFallback(t *testing.T) {
	d := New(&fakeQuota{}, DefaultLimits(), zap.NewNop())

	text := "надо встретиться по проекту"
	if got := AnalyzeComplexity(text); got != models.ComplexityMedium {
		t.Fatalf("AnalyzeComplexity(%q) = %s, want medium", text, got)
	}

	// The medium rule decides before the forwarded check is reached.
	dec := d.DecideParsingMode(context.Background(), 1, text, false, true)
	if dec.Mode != models.ModeLocalWithFallback {
		t.Fatalf("forwarded medium message: expected local_with_gpt_fallback, got %s", dec.Mode)
	}
	if dec.ConfidenceThreshold != 0.7 {
		t.Fatalf("expected threshold 0.7, got %f", dec.ConfidenceThreshold)
	}
	if dec.MaxTokens != 1000 {
		t.Fatalf("expected default token budget 1000, got %d", dec.MaxTokens)
	}
}

func TestDecideParsingModeComplexGetsBiggerBudget(t *testing.T) {
	d := New(&fakeQuota{}, DefaultLimits(), zap.NewNop())

	dec := d.DecideParsingMode(context.Background(), 1, "каждый понедельник напомни про созвон если не перенесем", false, false)
	if dec.Mode != models.ModeGPTOnly {
		t.Fatalf("expected gpt_only, got %s", dec.Mode)
	}
	if dec.MaxTokens != 1500 {
		t.Fatalf("expected expanded token budget 1500, got %d", dec.MaxTokens)
	}
}

func TestDecideTranscriptionMode(t *testing.T) {
	ctx := context.Background()

	d := New(&fakeQuota{}, DefaultLimits(), zap.NewNop())
	dec := d.DecideTranscriptionMode(ctx, 1, 30)
	if dec.Mode != models.ModeGPTOnly {
		t.Fatalf("expected gpt_only when quota available, got %s", dec.Mode)
	}

	d = New(&fakeQuota{denied: []string{"whisper:hour:"}}, DefaultLimits(), zap.NewNop())
	dec = d.DecideTranscriptionMode(ctx, 1, 30)
	if dec.Mode != models.ModeQueueForLater {
		t.Fatalf("expected queue_for_later on hourly limit, got %s", dec.Mode)
	}
	if dec.DelaySeconds != 60 {
		t.Fatalf("expected 60s retry delay, got %d", dec.DelaySeconds)
	}

	d = New(&fakeQuota{denied: []string{"whisper:day:"}}, DefaultLimits(), zap.NewNop())
	dec = d.DecideTranscriptionMode(ctx, 1, 30)
	if dec.Mode != models.ModeQueueForLater {
		t.Fatalf("expected queue_for_later on daily limit, got %s", dec.Mode)
	}
	if dec.DelaySeconds != 3600 {
		t.Fatalf("expected 3600s retry delay, got %d", dec.DelaySeconds)
	}
}

func TestAnalyzeComplexity(t *testing.T) {
	cases := []struct {
		text string
		want models.Complexity
	}{
		{"завтра в 15:00 созвон с Петровым", models.ComplexitySimple},
		{"встреча с Иваном", models.ComplexitySimple},
		{"перенести встречу на попозже", models.ComplexityMedium},
		{"если успеем, перенести встречу", models.ComplexityComplex},
		{"каждый вторник напомни про отчет", models.ComplexityComplex},
		{"просто сообщение", models.ComplexityMedium},
	}

	for _, tc := range cases {
		if got := AnalyzeComplexity(tc.text); got != tc.want {
			t.Errorf("AnalyzeComplexity(%q) = %s, want %s", tc.text, got, tc.want)
		}
	}
}

func TestShouldAddConference(t *testing.T) {
	d := New(&fakeQuota{}, DefaultLimits(), zap.NewNop())

	cases := []struct {
		title string
		want  string
	}{
		{"Созвон в zoom с командой", "zoom"},
		{"Встреча в google meet", "google_meet"},
		{"Созвон: Петровым", "google_meet"},
		{"Обед с семьей", ""},
	}

	for _, tc := range cases {
		if got := d.ShouldAddConference(tc.title, nil); got != tc.want {
			t.Errorf("ShouldAddConference(%q) = %q, want %q", tc.title, got, tc.want)
		}
	}
}
