package repository

import (
	"mailpilot-backend/internal/notification/domain"

	"gorm.io/gorm"
)

// ChatConfigRepository defines the interface for chat webhook configurations
type ChatConfigRepository interface {
	GetByUserID(userID string) (*domain.ChatConfig, error)
}

type chatConfigRepository struct {
	db *gorm.DB
}

func NewChatConfigRepository(db *gorm.DB) ChatConfigRepository {
	return &chatConfigRepository{db: db}
}

func (r *chatConfigRepository) GetByUserID(userID string) (*domain.ChatConfig, error) {
	var config domain.ChatConfig
	err := r.db.Where("user_id = ?", userID).First(&config).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &config, nil
}
