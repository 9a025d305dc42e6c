package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/lingualab/oralis/internal/models"
	"github.com/lingualab/oralis/internal/utils"
)

type SessionRepository interface {
	Create(ctx context.Context, s *models.InterviewSession) error
	GetBySessionID(ctx context.Context, sessionID string) (*models.InterviewSession, error)
	SetStatus(ctx context.Context, sessionID, status string) error
	UpdatePosition(ctx context.Context, sessionID string, pos models.ExamPosition) error
	AppendSegment(ctx context.Context, sessionID string, seg models.SegmentMeta) error
	SetSegmentURL(ctx context.Context, sessionID, label, url string) error
	Complete(ctx context.Context, sessionID string, endedAt time.Time, durationSeconds int64, reportID string) error
	HasCompleted(ctx context.Context, candidateID, testID string) (bool, error)
}

type sessionRepo struct {
	col *mongo.Collection
}

func NewSessionRepo(db *mongo.Database) SessionRepository {
	return &sessionRepo{col: db.Collection("interview_sessions")}
}

func (r *sessionRepo) Create(ctx context.Context, s *models.InterviewSession) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	_, err := r.col.InsertOne(ctx, s)
	return err
}

func (r *sessionRepo) GetBySessionID(ctx context.Context, sessionID string) (*models.InterviewSession, error) {
	var s models.InterviewSession
	err := r.col.FindOne(ctx, bson.M{"session_id": sessionID}).Decode(&s)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.ErrNotFound
	}
	return &s, err
}

func (r *sessionRepo) SetStatus(ctx context.Context, sessionID, status string) error {
	_, err := r.col.UpdateOne(ctx,
		bson.M{"session_id": sessionID},
		bson.M{"$set": bson.M{"status": status}},
	)
	return err
}

func (r *sessionRepo) UpdatePosition(ctx context.Context, sessionID string, pos models.ExamPosition) error {
	_, err := r.col.UpdateOne(ctx,
		bson.M{"session_id": sessionID},
		bson.M{"$set": bson.M{"position": pos}},
	)
	return err
}

func (r *sessionRepo) AppendSegment(ctx context.Context, sessionID string, seg models.SegmentMeta) error {
	_, err := r.col.UpdateOne(ctx,
		bson.M{"session_id": sessionID},
		bson.M{"$push": bson.M{"segments": seg}},
	)
	return err
}

func (r *sessionRepo) SetSegmentURL(ctx context.Context, sessionID, label, url string) error {
	_, err := r.col.UpdateOne(ctx,
		bson.M{"session_id": sessionID, "segments.label": label},
		bson.M{"$set": bson.M{"segments.$.stored_url": url}},
	)
	return err
}

func (r *sessionRepo) Complete(ctx context.Context, sessionID string, endedAt time.Time, durationSeconds int64, reportID string) error {
	set := bson.M{
		"status":           models.StatusCompleted,
		"ended_at":         endedAt.UTC(),
		"duration_seconds": durationSeconds,
	}
	if reportID != "" {
		set["report_id"] = reportID
	}
	_, err := r.col.UpdateOne(ctx, bson.M{"session_id": sessionID}, bson.M{"$set": set})
	return err
}

func (r *sessionRepo) HasCompleted(ctx context.Context, candidateID, testID string) (bool, error) {
	n, err := r.col.CountDocuments(ctx, bson.M{
		"candidate_id": candidateID,
		"test_id":      testID,
		"status":       models.StatusCompleted,
	})
	return n > 0, err
}
