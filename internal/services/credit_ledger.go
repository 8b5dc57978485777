package services

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type CreditPool string

const (
	PoolSubscription CreditPool = "subscription"
	PoolPurchased    CreditPool = "purchased"
)

// ChargeOrder is the order in which pools are drawn down.
var ChargeOrder = []CreditPool{PoolSubscription, PoolPurchased}

var creditChargesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "memory_stitcher_credit_charges_total",
		Help: "Interview credits charged, by pool.",
	},
	[]string{"pool"},
)

type CreditBalance struct {
	SubscriptionCredits int `json:"subscription_credits"`
	PurchasedCredits    int `json:"purchased_credits"`
}

func (b CreditBalance) Total() int {
	return b.SubscriptionCredits + b.PurchasedCredits
}

func (b CreditBalance) Available(pool CreditPool) int {
	switch pool {
	case PoolSubscription:
		return b.SubscriptionCredits
	case PoolPurchased:
		return b.PurchasedCredits
	}
	return 0
}

func (b CreditBalance) with(pool CreditPool, n int) CreditBalance {
	switch pool {
	case PoolSubscription:
		b.SubscriptionCredits = n
	case PoolPurchased:
		b.PurchasedCredits = n
	}
	return b
}

// CanStart reports whether the user may begin a new interview.
func CanStart(b CreditBalance) bool {
	return b.Total() > 0
}

// DecrementFirstAvailable takes one credit from the first pool in ChargeOrder that holds one.
func DecrementFirstAvailable(b CreditBalance) (CreditBalance, CreditPool, error) {
	for _, pool := range ChargeOrder {
		if n := b.Available(pool); n > 0 {
			return b.with(pool, n-1), pool, nil
		}
	}
	return b, "", ErrInsufficientCredits
}

// Charge is DecrementFirstAvailable.
func Charge(b CreditBalance) (CreditBalance, CreditPool, error) {
	return DecrementFirstAvailable(b)
}

// Column maps a pool to its users table column.
func (p CreditPool) Column() (string, error) {
	switch p {
	case PoolSubscription:
		return "subscription_credits", nil
	case PoolPurchased:
		return "purchased_credits", nil
	}
	return "", fmt.Errorf("unknown credit pool %q", p)
}
