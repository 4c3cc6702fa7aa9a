// Package gorm provides GORM-based database operations for dealscope.
package gorm

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/calibervc/dealscope/pkg/models"
)

// AlertStore provides alert database operations using GORM.
type AlertStore struct {
	db *gorm.DB
}

// NewAlertStore creates a new alert store.
func NewAlertStore(store *Store) *AlertStore {
	return &AlertStore{db: store.DB}
}

// AppendAlerts persists all alerts from one recalculation as a single batch
// and writes the assigned IDs back into the domain alerts.
func (s *AlertStore) AppendAlerts(ctx context.Context, alerts []*models.Alert) error {
	if len(alerts) == 0 {
		return nil
	}

	rows := make([]*Alert, 0, len(alerts))
	for _, a := range alerts {
		rows = append(rows, alertFromDomain(a))
	}

	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	if err := s.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return fmt.Errorf("create alerts: %w", err)
	}
	for i, row := range rows {
		alerts[i].ID = row.ID
	}
	return nil
}

// ListBySubject returns a subject's alerts, most recent first.
func (s *AlertStore) ListBySubject(ctx context.Context, subjectID string, limit int) ([]*models.Alert, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	if limit <= 0 || limit > MaxPaginationLimit {
		limit = 50
	}

	var rows []*Alert
	err := s.db.WithContext(ctx).
		Where("subject_id = ?", subjectID).
		Order("created_at_epoch DESC, id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}

	alerts := make([]*models.Alert, 0, len(rows))
	for _, row := range rows {
		alerts = append(alerts, alertToDomain(row))
	}
	return alerts, nil
}
