package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Session status values.
const (
	StatusIdle      = "idle"
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusError     = "error"
)

// Segment capture states.
const (
	SegmentRecording = "recording"
	SegmentPaused    = "paused"
	SegmentFinalized = "finalized"
)

// ExamPosition is the candidate's current place in the script. Mutated only
// by the interview engine; advances monotonically apart from the
// intro-to-part-1 reset of the question index.
type ExamPosition struct {
	Part     Part `bson:"part" json:"part"`
	Question int  `bson:"question" json:"question"`
}

// SegmentMeta is the persisted record of one finalized audio segment.
type SegmentMeta struct {
	Label       string    `bson:"label" json:"label"`
	SizeBytes   int       `bson:"size_bytes" json:"size_bytes"`
	Status      string    `bson:"status" json:"status"`
	StoredURL   string    `bson:"stored_url,omitempty" json:"stored_url,omitempty"`
	FinalizedAt time.Time `bson:"finalized_at" json:"finalized_at"`
}

// InterviewSession aggregates position, segments, and terminal status for
// one candidate run of the speaking test.
type InterviewSession struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SessionID   string             `bson:"session_id" json:"session_id"` // uuid v4
	CandidateID string             `bson:"candidate_id" json:"candidate_id"`
	TestID      string             `bson:"test_id" json:"test_id"`

	Status   string        `bson:"status" json:"status"`
	Position ExamPosition  `bson:"position" json:"position"`
	Segments []SegmentMeta `bson:"segments" json:"segments"`

	// ReportID is the backend-assigned identifier of the persisted result,
	// set once the evaluation pipeline has run.
	ReportID string `bson:"report_id,omitempty" json:"report_id,omitempty"`

	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	EndedAt   *time.Time `bson:"ended_at,omitempty" json:"ended_at,omitempty"`

	DurationSeconds int64 `bson:"duration_seconds" json:"duration_seconds"`
}

// ResponseEntry is one transcribed turn, keyed by part and question index.
// Append-only; advisory, not used for band scoring.
type ResponseEntry struct {
	Part          Part    `json:"part"`
	QuestionIndex int     `json:"question_index"`
	Transcript    string  `json:"transcript"`
	Confidence    float64 `json:"confidence"`
}
