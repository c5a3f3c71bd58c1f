// Package audit implements the AuditService contract. Two sinks exist: a
// GORM-backed relational store (the system of record) and an optional Kafka
// fan-out for downstream security tooling.
package audit

import (
	"context"

	"gorm.io/gorm"

	"github.com/soleron/sessiond/internal/domain/models"
	"github.com/soleron/sessiond/internal/domain/service"
	"github.com/soleron/sessiond/pkg/errors"
)

// GormAuditService stores security events in a relational database.
type GormAuditService struct {
	db *gorm.DB
}

// NewGormAuditService creates the GORM-backed audit sink and ensures the
// events table exists.
func NewGormAuditService(db *gorm.DB) (service.AuditService, error) {
	if err := db.AutoMigrate(&models.SecurityEvent{}); err != nil {
		return nil, errors.ErrDatabaseOperation.WithError(err)
	}
	return &GormAuditService{db: db}, nil
}

// RecordEvent saves a security event.
func (s *GormAuditService) RecordEvent(ctx context.Context, event *models.SecurityEvent) error {
	if err := s.db.WithContext(ctx).Create(event).Error; err != nil {
		return errors.ErrDatabaseOperation.WithError(err)
	}
	return nil
}

// RecentEvents returns the most recent events of a given type, newest first.
// Used by operational tooling to inspect security signals.
func (s *GormAuditService) RecentEvents(ctx context.Context, eventType string, limit int) ([]models.SecurityEvent, error) {
	var events []models.SecurityEvent
	q := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit)
	if eventType != "" {
		q = q.Where("event_type = ?", eventType)
	}
	if err := q.Find(&events).Error; err != nil {
		return nil, errors.ErrDatabaseOperation.WithError(err)
	}
	return events, nil
}
