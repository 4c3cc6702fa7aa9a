// Package gorm provides GORM-based database operations for dealscope.
package gorm

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/calibervc/dealscope/pkg/models"
)

// SubjectStore provides subject score-state database operations using GORM.
type SubjectStore struct {
	db *gorm.DB
}

// NewSubjectStore creates a new subject store.
func NewSubjectStore(store *Store) *SubjectStore {
	return &SubjectStore{db: store.DB}
}

// Create registers a subject. Uses INSERT OR IGNORE pattern for atomic
// idempotent creation, so registering an existing subject is a no-op.
func (s *SubjectStore) Create(ctx context.Context, subjectID, name string) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	row := &Subject{
		SubjectID: subjectID,
		Name:      sqlNullString(name),
		Trend:     string(models.TrendStable),
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "subject_id"}},
			DoNothing: true,
		}).
		Create(row).Error
	if err != nil {
		return fmt.Errorf("create subject: %w", err)
	}
	return nil
}

// Get returns a subject's score state, or models.ErrSubjectNotFound.
func (s *SubjectStore) Get(ctx context.Context, subjectID string) (*models.SubjectScore, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	var row Subject
	err := s.db.WithContext(ctx).
		Where("subject_id = ?", subjectID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrSubjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get subject: %w", err)
	}
	return subjectToDomain(&row), nil
}

// Save upserts a subject's score state. Last writer wins.
func (s *SubjectStore) Save(ctx context.Context, state *models.SubjectScore) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	row := subjectFromDomain(state)
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "subject_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"name", "base_score", "current_score", "breakdown",
				"trend", "trend_delta", "score_updated_at_epoch",
			}),
		}).
		Create(row).Error
	if err != nil {
		return fmt.Errorf("save subject: %w", err)
	}
	return nil
}

// List returns every subject's score state, most recently created first.
func (s *SubjectStore) List(ctx context.Context) ([]*models.SubjectScore, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	var rows []*Subject
	err := s.db.WithContext(ctx).
		Order("created_at_epoch DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}

	states := make([]*models.SubjectScore, 0, len(rows))
	for _, row := range rows {
		states = append(states, subjectToDomain(row))
	}
	return states, nil
}
