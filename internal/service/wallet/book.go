package wallet

import (
	"time"

	"matka-service/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Book caches row-locked wallets for the duration of one settlement
// transaction so a window touching the same referrer many times locks
// and saves each wallet once.
type Book struct {
	tx      *gorm.DB
	entries map[int64]*bookEntry
}

type bookEntry struct {
	wallet *model.Wallet
	exists bool
	dirty  bool
}

func NewBook(tx *gorm.DB) *Book {
	return &Book{
		tx:      tx,
		entries: make(map[int64]*bookEntry),
	}
}

func (b *Book) Ensure(userID int64) (*model.Wallet, error) {
	if entry, ok := b.entries[userID]; ok {
		entry.dirty = true
		return entry.wallet, nil
	}

	wallet := &model.Wallet{}
	err := b.tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(wallet).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			return nil, err
		}
		wallet = &model.Wallet{UserID: userID}
	}

	entry := &bookEntry{
		wallet: wallet,
		exists: err == nil,
		dirty:  true,
	}
	b.entries[userID] = entry
	return wallet, nil
}

func (b *Book) SaveAll(now time.Time) error {
	for _, entry := range b.entries {
		if !entry.dirty {
			continue
		}
		entry.wallet.UpdatedAt = now
		var err error
		if entry.exists {
			err = b.tx.Save(entry.wallet).Error
		} else {
			err = b.tx.Create(entry.wallet).Error
			if err == nil {
				entry.exists = true
			}
		}
		if err != nil {
			return err
		}
		entry.dirty = false
	}
	return nil
}
