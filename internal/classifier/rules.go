package classifier

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Rules is the keyword/pattern data driving the local classifier. The tables
// are data, not logic: they can be replaced from a yaml file without code
// changes to tune classification for a different audience.
type Rules struct {
	NoteKeywords  []string `yaml:"note_keywords"`
	EventKeywords []string `yaml:"event_keywords"`

	TimeOfDay []TimeOfDayRule `yaml:"time_of_day"`
	Durations []DurationRule  `yaml:"durations"`

	LocationPatterns       []string `yaml:"location_patterns"`
	ConferenceLinkPatterns []string `yaml:"conference_link_patterns"`

	ParticipantPatterns []string `yaml:"participant_patterns"`
	ParticipantStoplist []string `yaml:"participant_stoplist"`

	TitlePatterns []string `yaml:"title_patterns"`

	EveningKeywords []string `yaml:"evening_keywords"`
}

// TimeOfDayRule maps a vague time-of-day expression to a concrete clock time.
type TimeOfDayRule struct {
	Pattern string `yaml:"pattern"`
	Time    string `yaml:"time"`
}

// DurationRule maps a duration expression to minutes. When UnitMinutes is
// set the pattern's first capture group is multiplied by it, otherwise the
// fixed Minutes value is used.
type DurationRule struct {
	Pattern     string `yaml:"pattern"`
	Minutes     int    `yaml:"minutes"`
	UnitMinutes int    `yaml:"unit_minutes"`
}

func DefaultRules() Rules {
	return Rules{
		NoteKeywords: []string{
			"идея", "мысль", "заметка", "запомни", "записать", "запиши",
			"нужно купить", "не забыть", "напомни себе", "todo", "список",
		},
		EventKeywords: []string{
			"встреча", "звонок", "созвон", "zoom", "зум", "meet", "митинг",
			"собрание", "переговоры", "презентация", "обед", "ужин", "завтрак",
			"прием", "консультация", "интервью", "собеседование", "вебинар",
			"конференция", "семинар", "тренинг", "курс", "урок", "занятие",
		},
		TimeOfDay: []TimeOfDayRule{
			{Pattern: `утром`, Time: "10:00"},
			{Pattern: `с утра`, Time: "09:00"},
			{Pattern: `днем|днём`, Time: "14:00"},
			{Pattern: `после обеда`, Time: "14:00"},
			{Pattern: `вечером`, Time: "19:00"},
			{Pattern: `ночью`, Time: "23:00"},
			{Pattern: `в обед`, Time: "13:00"},
			{Pattern: `in the morning`, Time: "10:00"},
			{Pattern: `in the evening|tonight`, Time: "19:00"},
		},
		Durations: []DurationRule{
			{Pattern: `полтора\s*час`, Minutes: 90},
			{Pattern: `полчаса`, Minutes: 30},
			{Pattern: `an hour and a half`, Minutes: 90},
			{Pattern: `half an hour`, Minutes: 30},
			{Pattern: `(\d+)\s*(?:час|hour)`, UnitMinutes: 60},
			{Pattern: `(\d+)\s*(?:мин|min)`, UnitMinutes: 1},
		},
		LocationPatterns: []string{
			`в\s+(?:кафе|ресторан[еа]?|офис[еа]?|переговорн\S*|конференц[- ]зал\S*)(?:\s+[«"']?\S+[»"']?)?`,
			`на\s+(?:адрес[еа]?|улиц[еа]?)\s+[^.,]+`,
			`место[:\s]\s*[^.,]+`,
			`где[:\s]\s*[^.,]+`,
		},
		ConferenceLinkPatterns: []string{
			`https?://\S*zoom\S*`,
			`https?://meet\.google\.com/\S+`,
		},
		ParticipantPatterns: []string{
			`(?:^|\s)встреча\s+с\s+([\p{L}]+(?:\s+[\p{L}]+)?)`,
			`(?:^|\s)созвон\s+с\s+([\p{L}]+)`,
			`(?:^|\s)звонок\s+([\p{L}]+)`,
			`(?:^|\s)с\s+([\p{L}]+(?:\s+[\p{L}]+)?)`,
		},
		ParticipantStoplist: []string{
			"утра", "вечера", "обеда", "завтра", "послезавтра",
		},
		TitlePatterns: []string{
			`(встреча|звонок|созвон|zoom|зум|собрание)\s+(?:с\s+)?(.+)`,
			`(презентация|вебинар|конференция|семинар)\s+(.+)`,
			`(обед|ужин|завтрак)\s+(?:с\s+)?(.+)`,
		},
		EveningKeywords: []string{"вечер", "ночь", "evening", "night"},
	}
}

// LoadRules reads rule tables from a yaml file. Sections left empty in the
// file keep their built-in defaults.
func LoadRules(path string) (Rules, error) {
	rules := DefaultRules()

	data, err := os.ReadFile(path)
	if err != nil {
		return rules, fmt.Errorf("failed to read rules file: %w", err)
	}

	var loaded Rules
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return rules, fmt.Errorf("failed to parse rules file: %w", err)
	}

	if len(loaded.NoteKeywords) > 0 {
		rules.NoteKeywords = loaded.NoteKeywords
	}
	if len(loaded.EventKeywords) > 0 {
		rules.EventKeywords = loaded.EventKeywords
	}
	if len(loaded.TimeOfDay) > 0 {
		rules.TimeOfDay = loaded.TimeOfDay
	}
	if len(loaded.Durations) > 0 {
		rules.Durations = loaded.Durations
	}
	if len(loaded.LocationPatterns) > 0 {
		rules.LocationPatterns = loaded.LocationPatterns
	}
	if len(loaded.ConferenceLinkPatterns) > 0 {
		rules.ConferenceLinkPatterns = loaded.ConferenceLinkPatterns
	}
	if len(loaded.ParticipantPatterns) > 0 {
		rules.ParticipantPatterns = loaded.ParticipantPatterns
	}
	if len(loaded.ParticipantStoplist) > 0 {
		rules.ParticipantStoplist = loaded.ParticipantStoplist
	}
	if len(loaded.TitlePatterns) > 0 {
		rules.TitlePatterns = loaded.TitlePatterns
	}
	if len(loaded.EveningKeywords) > 0 {
		rules.EveningKeywords = loaded.EveningKeywords
	}

	return rules, nil
}

type timeOfDayRe struct {
	re   *regexp.Regexp
	time string
}

type durationRe struct {
	re          *regexp.Regexp
	minutes     int
	unitMinutes int
}

// RuleSet is a compiled Rules ready for matching.
type RuleSet struct {
	noteKeywords  []string
	eventKeywords []string

	timeOfDay []timeOfDayRe
	durations []durationRe

	locations []*regexp.Regexp
	confLinks []*regexp.Regexp

	participants []*regexp.Regexp
	stoplist     map[string]struct{}

	titles []*regexp.Regexp

	eveningKeywords []string

	// "в 15:00", "в 3 часа", "at 5:30"
	explicitTime *regexp.Regexp
	// loose time presence check used by content-type detection
	timeHint *regexp.Regexp
}

func (r Rules) Compile() (*RuleSet, error) {
	rs := &RuleSet{
		noteKeywords:    r.NoteKeywords,
		eventKeywords:   r.EventKeywords,
		eveningKeywords: r.EveningKeywords,
		stoplist:        make(map[string]struct{}, len(r.ParticipantStoplist)),
		explicitTime:    regexp.MustCompile(`(?:^|\s)(?:в|at)\s*(\d{1,2})(?:[:.](\d{2}))?`),
		timeHint:        regexp.MustCompile(`\d{1,2}[:.]\d{2}|\d{1,2}\s*час`),
	}

	for _, w := range r.ParticipantStoplist {
		rs.stoplist[w] = struct{}{}
	}

	for _, t := range r.TimeOfDay {
		re, err := regexp.Compile(t.Pattern)
		if err != nil {
			return nil, fmt.Errorf("time-of-day pattern %q: %w", t.Pattern, err)
		}
		rs.timeOfDay = append(rs.timeOfDay, timeOfDayRe{re: re, time: t.Time})
	}

	for _, d := range r.Durations {
		re, err := regexp.Compile(d.Pattern)
		if err != nil {
			return nil, fmt.Errorf("duration pattern %q: %w", d.Pattern, err)
		}
		rs.durations = append(rs.durations, durationRe{re: re, minutes: d.Minutes, unitMinutes: d.UnitMinutes})
	}

	var err error
	if rs.locations, err = compileAll(r.LocationPatterns); err != nil {
		return nil, err
	}
	if rs.confLinks, err = compileAll(r.ConferenceLinkPatterns); err != nil {
		return nil, err
	}
	if rs.participants, err = compileAll(r.ParticipantPatterns); err != nil {
		return nil, err
	}
	if rs.titles, err = compileAll(r.TitlePatterns); err != nil {
		return nil, err
	}

	return rs, nil
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	res := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", p, err)
		}
		res = append(res, re)
	}
	return res, nil
}
