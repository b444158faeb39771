package repository

import (
	"mailpilot-backend/internal/rule/domain"

	"gorm.io/gorm"
)

// RuleRepository defines the interface for rule persistence
type RuleRepository interface {
	FindActiveByUserID(userID string) ([]domain.Rule, error)
}

type ruleRepository struct {
	db *gorm.DB
}

func NewRuleRepository(db *gorm.DB) RuleRepository {
	return &ruleRepository{db: db}
}

// FindActiveByUserID returns the user's active rules in creation order
func (r *ruleRepository) FindActiveByUserID(userID string) ([]domain.Rule, error) {
	var rules []domain.Rule
	err := r.db.
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("created_at ASC").
		Find(&rules).Error
	if err != nil {
		return nil, err
	}
	return rules, nil
}
