package director

import (
	"regexp"
	"strings"

	"github.com/xaenox/planner-bot/internal/models"
)

// simplePatterns mark messages a local parse handles well: a clear explicit
// time or a plain action phrase.
var simplePatterns = []*regexp.Regexp{
	regexp.MustCompile(`завтра в \d{1,2}`),
	regexp.MustCompile(`сегодня в \d{1,2}`),
	regexp.MustCompile(`в \d{1,2}:\d{2}`),
	regexp.MustCompile(`в \d{1,2} час`),
	regexp.MustCompile(`встреча с [\p{L}]+`),
	regexp.MustCompile(`звонок [\p{L}]+`),
	regexp.MustCompile(`созвон с [\p{L}]+`),
}

// complexIndicators suggest conditions, rescheduling, recurrence or reminder
// offsets that local parsing cannot express.
var complexIndicators = []string{
	"если", "когда", "после того как", "при условии",
	"перенести", "сдвинуть", "изменить время",
	"каждый", "еженедельно", "ежемесячно",
	"напомни", "за час до", "за день до",
}

// AnalyzeComplexity estimates how hard a message is to parse. This scoring
// pass is independent from content-type detection in the classifier.
func AnalyzeComplexity(text string) models.Complexity {
	lower := strings.ToLower(text)
	length := len([]rune(text))

	for _, re := range simplePatterns {
		if re.MatchString(lower) {
			if length > 200 {
				return models.ComplexityMedium
			}
			return models.ComplexitySimple
		}
	}

	score := 0
	for _, ind := range complexIndicators {
		if strings.Contains(lower, ind) {
			score++
		}
	}

	if score >= 2 {
		return models.ComplexityComplex
	}
	if score == 1 || length > 150 {
		return models.ComplexityMedium
	}

	return models.ComplexityMedium
}
