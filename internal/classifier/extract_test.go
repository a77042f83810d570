package classifier

import "testing"

func compiled(t *testing.T) *RuleSet {
	t.Helper()
	rs, err := DefaultRules().Compile()
	if err != nil {
		t.Fatalf("compile rules: %v", err)
	}
	return rs
}

func TestExtractTime(t *testing.T) {
	rs := compiled(t)

	cases := []struct {
		text string
		want string
	}{
		{"завтра в 15:00 созвон", "15:00"},
		{"встреча в 9:30", "09:30"},
		// business-hours heuristic: bare hours below 8 are assumed PM
		{"созвон в 3", "15:00"},
		{"звонок в 10", "10:00"},
		{"встреча утром", "10:00"},
		{"созвон вечером", "19:00"},
		{"обсудим после обеда", "14:00"},
		{"купи молоко", ""},
	}

	for _, tc := range cases {
		if got := rs.ExtractTime(tc.text); got != tc.want {
			t.Errorf("ExtractTime(%q) = %q, want %q", tc.text, got, tc.want)
		}
	}
}

func TestExtractDuration(t *testing.T) {
	rs := compiled(t)

	cases := []struct {
		text string
		want int
	}{
		{"встреча на 2 часа", 120},
		{"созвон на 45 минут", 45},
		{"обсуждение на полчаса", 30},
		{"разговор на полтора часа", 90},
		{"meeting for half an hour", 30},
		{"просто встреча", 60},
	}

	for _, tc := range cases {
		if got := rs.ExtractDuration(tc.text); got != tc.want {
			t.Errorf("ExtractDuration(%q) = %d, want %d", tc.text, got, tc.want)
		}
	}
}

func TestExtractLocation(t *testing.T) {
	rs := compiled(t)

	if got := rs.ExtractLocation("встреча завтра в офисе"); got == "" {
		t.Error("expected office location to be found")
	}
	if got := rs.ExtractLocation("созвон https://us02web.zoom.us/j/123456"); got != "https://us02web.zoom.us/j/123456" {
		t.Errorf("expected zoom link, got %q", got)
	}
	if got := rs.ExtractLocation("где: переговорная на третьем этаже"); got == "" {
		t.Error("expected explicit где: prefix to be found")
	}
	if got := rs.ExtractLocation("купи молоко"); got != "" {
		t.Errorf("expected no location, got %q", got)
	}
}

func TestExtractParticipants(t *testing.T) {
	rs := compiled(t)

	got := rs.ExtractParticipants("завтра встреча с Иваном")
	if len(got) != 1 || got[0] != "Иваном" {
		t.Fatalf("expected [Иваном], got %v", got)
	}

	// time-of-day words captured by the preposition pattern are filtered out
	if got := rs.ExtractParticipants("встреча с утра в офисе"); len(got) != 0 {
		t.Fatalf("expected stoplist to drop non-names, got %v", got)
	}
}

func TestExtractParticipantsDeduplicates(t *testing.T) {
	rs := compiled(t)

	got := rs.ExtractParticipants("созвон с Петровым, потом еще созвон с Петровым")
	if len(got) != 1 {
		t.Fatalf("expected deduplicated participants, got %v", got)
	}
}

func TestExtractTitle(t *testing.T) {
	rs := compiled(t)

	if got := rs.ExtractTitle("завтра в 15:00 созвон с Петровым"); got != "Созвон: Петровым" {
		t.Errorf("expected pattern title, got %q", got)
	}

	long := "очень длинное сообщение без единого ключевого слова о том что надо было сделать еще на прошлой неделе"
	got := rs.ExtractTitle(long)
	if len([]rune(got)) > 53 {
		t.Errorf("fallback title too long: %q", got)
	}
}

func TestFirstSentence(t *testing.T) {
	if got := FirstSentence("Идея: добавить геймификацию. И еще что-то", 100); got != "Идея: добавить геймификацию" {
		t.Errorf("unexpected first sentence: %q", got)
	}
	if got := FirstSentence("строка один\nстрока два", 100); got != "строка один" {
		t.Errorf("expected newline to end the sentence, got %q", got)
	}
}
