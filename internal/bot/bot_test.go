package bot

import (
	"strings"
	"testing"
	"time"

	"github.com/xaenox/planner-bot/internal/models"
)

func TestFormatEventPreview(t *testing.T) {
	start := time.Date(2025, 1, 11, 15, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	result := models.ParsedContent{
		ContentType:     models.ContentEvent,
		Title:           "Созвон: Петровым",
		StartDatetime:   &start,
		EndDatetime:     &end,
		DurationMinutes: 60,
		Location:        "офис",
		Participants:    []string{"Петровым"},
	}

	preview := formatEventPreview(result, "google_meet")

	for _, want := range []string{
		"Созвон: Петровым",
		"11.01.2025 15:00",
		"16:00",
		"офис",
		"Google Meet",
		"Создать событие?",
	} {
		if !strings.Contains(preview, want) {
			t.Errorf("preview missing %q:\n%s", want, preview)
		}
	}
}

func TestFormatEventPreviewWithoutOptionalFields(t *testing.T) {
	start := time.Date(2025, 1, 11, 15, 0, 0, 0, time.UTC)

	preview := formatEventPreview(models.ParsedContent{
		ContentType:   models.ContentEvent,
		Title:         "Встреча",
		StartDatetime: &start,
	}, "")

	if strings.Contains(preview, "📍") || strings.Contains(preview, "👥") || strings.Contains(preview, "🔗") {
		t.Fatalf("preview should omit empty fields:\n%s", preview)
	}
}

func TestEventKeyboardOffersConferenceOnlyWhenMissing(t *testing.T) {
	withConference := eventKeyboard("abc", "zoom")
	if len(withConference.InlineKeyboard) != 1 {
		t.Fatalf("expected one row when conference is set, got %d", len(withConference.InlineKeyboard))
	}

	without := eventKeyboard("abc", "")
	if len(without.InlineKeyboard) != 2 {
		t.Fatalf("expected conference row when none is set, got %d rows", len(without.InlineKeyboard))
	}

	if got := *without.InlineKeyboard[0][0].CallbackData; got != "confirm:abc" {
		t.Fatalf("unexpected confirm callback data %q", got)
	}
}
