package models

import "errors"

// Part identifies one of the four phases of the speaking exam.
type Part string

const (
	PartIntro Part = "intro"
	PartOne   Part = "1"
	PartTwo   Part = "2"
	PartThree Part = "3"
)

// Label returns the human-readable segment label for the part.
func (p Part) Label() string {
	switch p {
	case PartIntro:
		return "Introduction"
	case PartOne:
		return "Part 1"
	case PartTwo:
		return "Part 2"
	case PartThree:
		return "Part 3"
	default:
		return string(p)
	}
}

// Scorable reports whether responses from this part are submitted to the
// evaluator. The introduction is recorded but never scored.
func (p Part) Scorable() bool {
	return p == PartOne || p == PartTwo || p == PartThree
}

// IntroStep is one line of the fixed introduction sequence.
type IntroStep struct {
	Text            string `bson:"text" json:"text" yaml:"text"`
	ExpectsResponse bool   `bson:"expects_response" json:"expects_response" yaml:"expects_response"`
}

// CueCard is the Part 2 long-turn prompt: a topic plus the points the
// candidate should address.
type CueCard struct {
	Topic  string   `bson:"topic" json:"topic" yaml:"topic"`
	Points []string `bson:"points" json:"points" yaml:"points"`
}

// ExamScript is the full script of one speaking test. Loaded once per
// session and never mutated afterwards.
type ExamScript struct {
	TestID   string      `bson:"test_id" json:"test_id" yaml:"test_id"`
	Title    string      `bson:"title" json:"title" yaml:"title"`
	Language string      `bson:"language,omitempty" json:"language,omitempty" yaml:"language"`
	Intro    []IntroStep `bson:"intro" json:"intro" yaml:"intro"`
	Part1    []string    `bson:"part1" json:"part1" yaml:"part1"`
	Part2    CueCard     `bson:"part2" json:"part2" yaml:"part2"`
	Part3    []string    `bson:"part3" json:"part3" yaml:"part3"`
}

// Validate checks that every part of the script is present.
func (s *ExamScript) Validate() error {
	switch {
	case s == nil:
		return errors.New("script is nil")
	case s.TestID == "":
		return errors.New("script missing test_id")
	case len(s.Intro) == 0:
		return errors.New("script has no introduction steps")
	case len(s.Part1) == 0:
		return errors.New("script has no part 1 questions")
	case s.Part2.Topic == "":
		return errors.New("script has no part 2 topic")
	case len(s.Part3) == 0:
		return errors.New("script has no part 3 questions")
	}
	return nil
}

// Questions returns the question list for the looping parts. Part 2 and the
// introduction drive their own flow and return nil.
func (s *ExamScript) Questions(p Part) []string {
	switch p {
	case PartOne:
		return s.Part1
	case PartThree:
		return s.Part3
	default:
		return nil
	}
}
