package repository

import (
	"mailpilot-backend/internal/account/domain"

	"gorm.io/gorm"
)

// AccountRepository defines the interface for account and sync cursor operations
type AccountRepository interface {
	FindByEmail(email string) (*domain.Account, error)
	FindByID(id string) (*domain.Account, error)
	FindAll() ([]domain.Account, error)
	Update(account *domain.Account) error
	// AdvanceCursor moves the durable sync cursor forward. A cursor at
	// or behind the stored one is a no-op, so the cursor never regresses.
	AdvanceCursor(accountID, historyID string) error
}

type accountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) FindByEmail(email string) (*domain.Account, error) {
	var account domain.Account
	err := r.db.Where("email = ?", email).First(&account).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

func (r *accountRepository) FindByID(id string) (*domain.Account, error) {
	var account domain.Account
	err := r.db.Where("id = ?", id).First(&account).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

func (r *accountRepository) FindAll() ([]domain.Account, error) {
	var accounts []domain.Account
	if err := r.db.Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

func (r *accountRepository) Update(account *domain.Account) error {
	return r.db.Save(account).Error
}

func (r *accountRepository) AdvanceCursor(accountID, historyID string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var account domain.Account
		if err := tx.Where("id = ?", accountID).First(&account).Error; err != nil {
			return err
		}
		if !domain.CursorLess(account.LastHistoryID, historyID) {
			return nil
		}
		return tx.Model(&domain.Account{}).
			Where("id = ?", accountID).
			Update("last_history_id", historyID).Error
	})
}
