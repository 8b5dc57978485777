package services

import (
	"context"

	"memory_stitcher_go_backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DefaultPurchaseLedger struct {
	db *gorm.DB
}

func NewPurchaseLedgerDB(db *gorm.DB) *DefaultPurchaseLedger {
	return &DefaultPurchaseLedger{db: db}
}

// ApplyPurchase records providerID and adds credits to the purchased pool in one
// transaction. A providerID seen before leaves the balance untouched.
func (l *DefaultPurchaseLedger) ApplyPurchase(ctx context.Context, providerID string, userID uuid.UUID, credits int) (bool, error) {
	applied := false
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := recordCheckout(tx, providerID, userID, checkoutKindCredits, credits)
		if err != nil || !ok {
			return err
		}
		res := tx.Model(&models.User{}).Where("id = ?", userID).
			Update("purchased_credits", gorm.Expr("purchased_credits + ?", credits))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrUserNotFound
		}
		applied = true
		return nil
	})
	return applied, err
}

// ApplySubscription sets the tier and resets the subscription pool to the period grant.
func (l *DefaultPurchaseLedger) ApplySubscription(ctx context.Context, providerID string, userID uuid.UUID, tier string, credits int) (bool, error) {
	applied := false
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := recordCheckout(tx, providerID, userID, checkoutKindSubscription, credits)
		if err != nil || !ok {
			return err
		}
		res := tx.Model(&models.User{}).Where("id = ?", userID).
			Updates(map[string]interface{}{
				"subscription_tier":    tier,
				"subscription_credits": credits,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrUserNotFound
		}
		applied = true
		return nil
	})
	return applied, err
}

func recordCheckout(tx *gorm.DB, providerID string, userID uuid.UUID, kind string, credits int) (bool, error) {
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.ProcessedCheckout{
		ProviderSessionID: providerID,
		UserID:            userID,
		Kind:              kind,
		Credits:           credits,
	})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
