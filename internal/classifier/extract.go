package classifier

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// ExtractTime finds a clock time in the text: first the vague time-of-day
// table ("утром" → 10:00), then explicit "в 15:00" / "в 3 часа" patterns.
// Returns "HH:MM" or "" when nothing matched.
//
// Ambiguous 12-hour times are resolved with a business-hours heuristic:
// hours below 8 are assumed PM unless an evening/night keyword is present.
// The heuristic is deliberate and known to be wrong for genuinely early
// mornings; it is kept until validated against labeled data.
func (r *RuleSet) ExtractTime(text string) string {
	lower := strings.ToLower(text)

	for _, t := range r.timeOfDay {
		if t.re.MatchString(lower) {
			return t.time
		}
	}

	m := r.explicitTime.FindStringSubmatch(lower)
	if m == nil {
		return ""
	}

	hour, _ := strconv.Atoi(m[1])
	minute := 0
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}

	if hour < 8 && !r.hasEveningKeyword(lower) {
		hour += 12
	}
	if hour > 23 || minute > 59 {
		return ""
	}

	return fmt.Sprintf("%02d:%02d", hour, minute)
}

func (r *RuleSet) hasEveningKeyword(lower string) bool {
	for _, kw := range r.eveningKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// ExtractDuration returns the event duration in minutes, default 60.
func (r *RuleSet) ExtractDuration(text string) int {
	lower := strings.ToLower(text)

	for _, d := range r.durations {
		m := d.re.FindStringSubmatch(lower)
		if m == nil {
			continue
		}
		if d.unitMinutes > 0 && len(m) > 1 && m[1] != "" {
			n, _ := strconv.Atoi(m[1])
			return n * d.unitMinutes
		}
		return d.minutes
	}

	return 60
}

// ExtractLocation returns the first location match: preposition patterns and
// explicit "место:"/"где:" prefixes on the lowercased text, then bare
// conference links on the original text. First match wins.
func (r *RuleSet) ExtractLocation(text string) string {
	lower := strings.ToLower(text)

	for _, re := range r.locations {
		if m := re.FindString(lower); m != "" {
			return strings.TrimSpace(m)
		}
	}

	for _, re := range r.confLinks {
		if m := re.FindString(text); m != "" {
			return m
		}
	}

	return ""
}

// ExtractParticipants collects participant names from "с <имя>" style
// constructs. Results are deduplicated; the stoplist filters time-of-day and
// relative-day words the preposition pattern would otherwise capture.
func (r *RuleSet) ExtractParticipants(text string) []string {
	lower := strings.ToLower(text)

	seen := make(map[string]struct{})
	participants := []string{}

	for _, re := range r.participants {
		m := re.FindStringSubmatch(lower)
		if m == nil {
			continue
		}
		name := strings.TrimSpace(m[1])
		if name == "" {
			continue
		}
		if _, stopped := r.stoplist[firstWord(name)]; stopped {
			continue
		}
		name = titleCase(name)
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		participants = append(participants, name)
	}

	return participants
}

var titleStopRe = regexp.MustCompile(`\s+(?:в|на|завтра|сегодня)(?:\s|$)|\s+\d`)

// ExtractTitle derives an event title from known patterns
// ("созвон с Петровым" → "Созвон: Петровым"), falling back to the first line
// truncated to 50 runes.
func (r *RuleSet) ExtractTitle(text string) string {
	lower := strings.ToLower(text)

	for _, re := range r.titles {
		m := re.FindStringSubmatch(lower)
		if m == nil {
			continue
		}
		kind := titleCase(strings.TrimSpace(m[1]))
		subject := strings.TrimSpace(truncateAtStop(m[2]))
		if len([]rune(subject)) > 2 {
			return kind + ": " + titleCase(subject)
		}
		return kind
	}

	line := strings.SplitN(text, "\n", 2)[0]
	runes := []rune(line)
	if len(runes) > 50 {
		return string(runes[:50]) + "..."
	}
	return line
}

// FirstSentence is used for note titles: text up to the first sentence
// boundary, truncated to limit runes.
func FirstSentence(text string, limit int) string {
	idx := strings.IndexAny(text, ".!?\n")
	if idx >= 0 {
		text = text[:idx]
	}
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) > limit {
		return string(runes[:limit])
	}
	return text
}

// truncateAtStop cuts a title subject at the first date/time token so that
// "с петровым завтра в 15:00" becomes "с петровым".
func truncateAtStop(subject string) string {
	if loc := titleStopRe.FindStringIndex(subject); loc != nil {
		return subject[:loc[0]]
	}
	return subject
}

func firstWord(s string) string {
	if idx := strings.IndexByte(s, ' '); idx >= 0 {
		return s[:idx]
	}
	return s
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		runes := []rune(w)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
