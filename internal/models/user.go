package models

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID                  uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	AuthID              string    `gorm:"unique;not null"`
	Email               string    `gorm:"unique;not null"`
	Name                string
	Nickname            string
	BirthYear           int
	Hometown            string
	SubscriptionTier    string `gorm:"not null;default:'free'"`
	SubscriptionCredits int    `gorm:"not null;default:0;check:subscription_credits >= 0"`
	PurchasedCredits    int    `gorm:"not null;default:0;check:purchased_credits >= 0"`
	IsAdmin             bool   `gorm:"not null;default:false"`
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// ProfileContext returns the fields a system prompt template may reference.
func (u *User) ProfileContext() map[string]string {
	ctx := map[string]string{
		"name":     u.Name,
		"nickname": u.Nickname,
		"email":    u.Email,
		"hometown": u.Hometown,
	}
	if u.BirthYear > 0 {
		ctx["birth_year"] = strconv.Itoa(u.BirthYear)
	}
	return ctx
}
