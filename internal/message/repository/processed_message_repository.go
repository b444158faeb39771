package repository

import (
	"mailpilot-backend/internal/message/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProcessedMessageRepository is the idempotent ledger. Insert is the
// system's sole duplicate-suppression mechanism and must stay correct
// under concurrent execution.
type ProcessedMessageRepository interface {
	// Insert attempts the ledger insert. Returns false when the
	// (user, message) pair already exists.
	Insert(msg *domain.ProcessedMessage) (bool, error)
}

type processedMessageRepository struct {
	db *gorm.DB
}

func NewProcessedMessageRepository(db *gorm.DB) ProcessedMessageRepository {
	return &processedMessageRepository{db: db}
}

// Insert relies on the uq_user_message unique constraint:
// INSERT ... ON CONFLICT DO NOTHING, conflict reported via RowsAffected
func (r *processedMessageRepository) Insert(msg *domain.ProcessedMessage) (bool, error) {
	result := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "message_id"}},
		DoNothing: true,
	}).Create(msg)

	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
