package services

import (
	"context"
	"errors"
	"fmt"

	"memory_stitcher_go_backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultCreditService keeps the two credit pools on the users table. Every change is a
// single guarded UPDATE; nothing reads a balance and writes it back.
type DefaultCreditService struct {
	db *gorm.DB
}

func NewCreditServiceDB(db *gorm.DB) *DefaultCreditService {
	return &DefaultCreditService{db: db}
}

func (s *DefaultCreditService) GetBalance(ctx context.Context, userID uuid.UUID) (CreditBalance, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Select("subscription_credits", "purchased_credits").
		Where("id = ?", userID).
		First(&user).Error
	if err != nil {
		return CreditBalance{}, err
	}
	return CreditBalance{SubscriptionCredits: user.SubscriptionCredits, PurchasedCredits: user.PurchasedCredits}, nil
}

func (s *DefaultCreditService) ChargeSession(ctx context.Context, userID, sessionID uuid.UUID) (CreditPool, bool, error) {
	var charged CreditPool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// check-and-set on the session closes the double charge race
		res := tx.Model(&models.ChatSession{}).
			Where("id = ? AND user_id = ? AND charged = ?", sessionID, userID, false).
			Update("charged", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		for _, pool := range ChargeOrder {
			col, err := pool.Column()
			if err != nil {
				return err
			}
			res := tx.Model(&models.User{}).
				Where("id = ? AND "+col+" > 0", userID).
				Update(col, gorm.Expr(col+" - 1"))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 1 {
				charged = pool
				return tx.Model(&models.ChatSession{}).Where("id = ?", sessionID).Update("charged_pool", string(pool)).Error
			}
		}
		return ErrInsufficientCredits
	})
	if err != nil {
		return "", false, err
	}
	return charged, charged != "", nil
}

func (s *DefaultCreditService) RefundSession(ctx context.Context, userID, sessionID uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var session models.ChatSession
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND user_id = ? AND charged = ?", sessionID, userID, true).
			First(&session).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}

		col, err := CreditPool(session.ChargedPool).Column()
		if err != nil {
			return err
		}
		if err := tx.Model(&models.User{}).Where("id = ?", userID).Update(col, gorm.Expr(col+" + 1")).Error; err != nil {
			return err
		}
		return tx.Model(&models.ChatSession{}).Where("id = ?", sessionID).
			Updates(map[string]interface{}{"charged": false, "charged_pool": ""}).Error
	})
}

// AdjustCredits adds delta (which may be negative) to one pool without letting it go below zero.
func (s *DefaultCreditService) AdjustCredits(ctx context.Context, userID uuid.UUID, pool CreditPool, delta int) (CreditBalance, error) {
	col, err := pool.Column()
	if err != nil {
		return CreditBalance{}, err
	}
	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND "+col+" + ? >= 0", userID, delta).
		Update(col, gorm.Expr(col+" + ?", delta))
	if res.Error != nil {
		return CreditBalance{}, res.Error
	}
	if res.RowsAffected == 0 {
		return CreditBalance{}, fmt.Errorf("%w: cannot adjust %s by %d", ErrInsufficientCredits, pool, delta)
	}
	return s.GetBalance(ctx, userID)
}
