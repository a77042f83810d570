package classifier

import (
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/olebedev/when/rules/ru"
	"go.uber.org/zap"

	"github.com/xaenox/planner-bot/internal/models"
)

// DefaultTimezone is used when the user's timezone is missing or invalid.
const DefaultTimezone = "Europe/Moscow"

const unclearClarification = "Не понял: это событие или заметка? Уточните, пожалуйста, что нужно сделать."

const noTimeClarification = "Не удалось определить время события. Уточните дату и время."

// LocalClassifier analyzes a message without any external call: content-type
// detection from keyword tables plus date/time, duration, location and
// participant extraction.
type LocalClassifier struct {
	rules  *RuleSet
	dates  *when.Parser
	logger *zap.Logger
}

func NewLocal(rules *RuleSet, logger *zap.Logger) *LocalClassifier {
	w := when.New(nil)
	w.Add(ru.All...)
	w.Add(en.All...)
	w.Add(common.All...)

	return &LocalClassifier{
		rules:  rules,
		dates:  w,
		logger: logger,
	}
}

// Classify parses the message relative to ref in the user's timezone.
// Relative dates prefer the future: a bare clock time that already passed
// today is rolled forward to tomorrow.
func (c *LocalClassifier) Classify(text, userTimezone string, ref time.Time) models.ParsedContent {
	loc := loadLocation(userTimezone)
	now := ref.In(loc)
	lower := strings.ToLower(text)

	parsed, err := c.dates.Parse(text, now)
	if err != nil {
		c.logger.Debug("Date parsing failed", zap.Error(err))
		parsed = nil
	}
	hasDate := parsed != nil

	explicitTime := c.rules.ExtractTime(text)
	hasTime := explicitTime != "" || c.rules.timeHint.MatchString(lower)

	contentType, confidence := c.detectContentType(lower, hasDate, hasTime)

	result := models.ParsedContent{
		ContentType:     contentType,
		Confidence:      confidence,
		DurationMinutes: 60,
		Participants:    []string{},
	}

	switch contentType {
	case models.ContentNote:
		result.Success = true
		result.Title = FirstSentence(text, 100)
		result.NoteContent = strings.TrimSpace(text)
		return result
	case models.ContentUnclear:
		result.NeedsEscalation = true
		result.ClarificationNeeded = unclearClarification
		return result
	}

	var start time.Time
	switch {
	case hasDate:
		start = parsed.Time
		// The date parser keeps the reference clock time when the text only
		// names a day; an explicitly found time wins in that case.
		if explicitTime != "" && (isMidnight(start) || sameClock(start, now)) {
			h, m := splitClock(explicitTime)
			start = time.Date(start.Year(), start.Month(), start.Day(), h, m, 0, 0, start.Location())
		}
	case explicitTime != "":
		h, m := splitClock(explicitTime)
		start = time.Date(now.Year(), now.Month(), now.Day(), h, m, 0, 0, loc)
	}

	if !start.IsZero() {
		// Future preference: a time-of-day already behind us means tomorrow.
		if !start.After(now) && now.Sub(start) < 24*time.Hour {
			start = start.Add(24 * time.Hour)
		}

		result.StartDatetime = &start
		result.DurationMinutes = c.rules.ExtractDuration(text)
		end := start.Add(time.Duration(result.DurationMinutes) * time.Minute)
		result.EndDatetime = &end
		result.Success = true

		if hasDate {
			if result.Confidence < 0.7 {
				result.Confidence = 0.7
			}
		} else {
			result.Confidence = 0.6
		}
	}

	result.Location = c.rules.ExtractLocation(text)
	result.Participants = c.rules.ExtractParticipants(text)
	result.Title = c.rules.ExtractTitle(text)

	if !result.Success {
		result.NeedsEscalation = true
		result.Confidence = 0.3
		result.ClarificationNeeded = noTimeClarification
	}

	return result
}

// detectContentType scores the text against the note and event keyword
// tables and applies the decision table from the routing design.
func (c *LocalClassifier) detectContentType(lower string, hasDate, hasTime bool) (models.ContentType, float64) {
	noteScore := countMatches(lower, c.rules.noteKeywords)
	eventScore := countMatches(lower, c.rules.eventKeywords)

	if noteScore > 0 && eventScore == 0 && !hasTime {
		confidence := 0.8 + float64(noteScore)*0.05
		if confidence > 1.0 {
			confidence = 1.0
		}
		return models.ContentNote, confidence
	}

	if eventScore > 0 || hasTime {
		confidence := 0.6 + float64(eventScore)*0.1
		if hasDate {
			confidence += 0.1
		}
		if hasTime {
			confidence += 0.1
		}
		if confidence > 0.95 {
			confidence = 0.95
		}
		return models.ContentEvent, confidence
	}

	if hasDate {
		return models.ContentEvent, 0.5
	}

	return models.ContentUnclear, 0.3
}

func countMatches(lower string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			n++
		}
	}
	return n
}

func loadLocation(name string) *time.Location {
	if loc, err := time.LoadLocation(name); err == nil {
		return loc
	}
	if loc, err := time.LoadLocation(DefaultTimezone); err == nil {
		return loc
	}
	return time.FixedZone("MSK", 3*60*60)
}

func splitClock(clock string) (hour, minute int) {
	parts := strings.SplitN(clock, ":", 2)
	hour = atoi(parts[0])
	if len(parts) == 2 {
		minute = atoi(parts[1])
	}
	return hour, minute
}

func atoi(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}

func isMidnight(t time.Time) bool {
	return t.Hour() == 0 && t.Minute() == 0
}

func sameClock(a, b time.Time) bool {
	return a.Hour() == b.Hour() && a.Minute() == b.Minute()
}
