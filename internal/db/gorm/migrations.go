// Package gorm provides GORM-based database operations for dealscope.
package gorm

import (
	"fmt"
	"time"

	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// runMigrations runs all database migrations using gormigrate.
func runMigrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		// Migration 001: Core tables (Subject, ScoreEvent)
		{
			ID: "001_core_tables",
			Migrate: func(tx *gorm.DB) error {
				// AutoMigrate creates tables with all indexes from struct tags
				if err := tx.AutoMigrate(&Subject{}); err != nil {
					return err
				}
				return tx.AutoMigrate(&ScoreEvent{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("subjects", "score_events")
			},
		},

		// Migration 002: Alerts table
		{
			ID: "002_alerts",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&Alert{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("alerts")
			},
		},
	})

	start := time.Now()
	if err := m.Migrate(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	log.Debug().Dur("elapsed", time.Since(start)).Msg("Migrations complete")
	return nil
}
