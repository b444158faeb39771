package repository

import (
	"mailpilot-backend/internal/alert/domain"

	"gorm.io/gorm"
)

// AlertRepository defines the interface for alert persistence
type AlertRepository interface {
	Create(alert *domain.Alert) error
}

type alertRepository struct {
	db *gorm.DB
}

func NewAlertRepository(db *gorm.DB) AlertRepository {
	return &alertRepository{db: db}
}

func (r *alertRepository) Create(alert *domain.Alert) error {
	return r.db.Create(alert).Error
}
