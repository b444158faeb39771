package repository

import (
	"time"

	"mailpilot-backend/internal/notification/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DeviceTokenRepository defines the interface for push device registrations
type DeviceTokenRepository interface {
	SaveToken(userID, platform, token, deviceID string) error
	GetTokensByUserID(userID string) ([]domain.DeviceToken, error)
	DeleteToken(token string) error
	TouchLastUsed(token string) error
	// DeleteStale removes tokens with no successful delivery since the cutoff
	DeleteStale(cutoff time.Time) (int64, error)
}

type deviceTokenRepository struct {
	db *gorm.DB
}

func NewDeviceTokenRepository(db *gorm.DB) DeviceTokenRepository {
	return &deviceTokenRepository{db: db}
}

// SaveToken saves or updates a device registration (atomic upsert on token)
func (r *deviceTokenRepository) SaveToken(userID, platform, token, deviceID string) error {
	deviceToken := &domain.DeviceToken{
		ID:        uuid.New().String(),
		UserID:    userID,
		Platform:  platform,
		Token:     token,
		DeviceID:  deviceID,
		CreatedAt: time.Now(),
	}

	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "platform", "device_id"}),
	}).Create(deviceToken).Error
}

func (r *deviceTokenRepository) GetTokensByUserID(userID string) ([]domain.DeviceToken, error) {
	var tokens []domain.DeviceToken
	if err := r.db.Where("user_id = ?", userID).Find(&tokens).Error; err != nil {
		return nil, err
	}
	return tokens, nil
}

func (r *deviceTokenRepository) DeleteToken(token string) error {
	return r.db.Where("token = ?", token).Delete(&domain.DeviceToken{}).Error
}

func (r *deviceTokenRepository) TouchLastUsed(token string) error {
	return r.db.Model(&domain.DeviceToken{}).
		Where("token = ?", token).
		Update("last_used", time.Now()).Error
}

func (r *deviceTokenRepository) DeleteStale(cutoff time.Time) (int64, error) {
	result := r.db.
		Where("last_used IS NOT NULL AND last_used < ?", cutoff).
		Delete(&domain.DeviceToken{})
	return result.RowsAffected, result.Error
}
