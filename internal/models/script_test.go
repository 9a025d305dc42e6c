package models

import "testing"

func validScript() *ExamScript {
	return &ExamScript{
		TestID: "t1",
		Intro:  []IntroStep{{Text: "hello"}},
		Part1:  []string{"q1", "q2"},
		Part2:  CueCard{Topic: "a topic"},
		Part3:  []string{"q3"},
	}
}

func TestScriptValidate(t *testing.T) {
	if err := validScript().Validate(); err != nil {
		t.Fatalf("valid script rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*ExamScript)
	}{
		{"missing test id", func(s *ExamScript) { s.TestID = "" }},
		{"no intro", func(s *ExamScript) { s.Intro = nil }},
		{"no part 1", func(s *ExamScript) { s.Part1 = nil }},
		{"no part 2 topic", func(s *ExamScript) { s.Part2.Topic = "" }},
		{"no part 3", func(s *ExamScript) { s.Part3 = nil }},
	}
	for _, tc := range cases {
		s := validScript()
		tc.mutate(s)
		if err := s.Validate(); err == nil {
			t.Errorf("%s: Validate accepted the script", tc.name)
		}
	}

	var nilScript *ExamScript
	if err := nilScript.Validate(); err == nil {
		t.Error("nil script accepted")
	}
}

func TestScriptQuestions(t *testing.T) {
	s := validScript()
	if got := s.Questions(PartOne); len(got) != 2 {
		t.Errorf("part 1 questions = %d, want 2", len(got))
	}
	if got := s.Questions(PartThree); len(got) != 1 {
		t.Errorf("part 3 questions = %d, want 1", len(got))
	}
	if got := s.Questions(PartTwo); got != nil {
		t.Errorf("part 2 questions = %v, want nil", got)
	}
}

func TestPartLabel(t *testing.T) {
	cases := map[Part]string{
		PartIntro: "Introduction",
		PartOne:   "Part 1",
		PartTwo:   "Part 2",
		PartThree: "Part 3",
	}
	for part, want := range cases {
		if got := part.Label(); got != want {
			t.Errorf("%q.Label() = %q, want %q", part, got, want)
		}
	}
}

func TestPartScorable(t *testing.T) {
	if PartIntro.Scorable() {
		t.Error("introduction must not be scorable")
	}
	for _, p := range []Part{PartOne, PartTwo, PartThree} {
		if !p.Scorable() {
			t.Errorf("%q must be scorable", p)
		}
	}
}
