package services

import (
	"fmt"
	"strconv"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/webhook"
)

type CreditPack struct {
	Name        string
	Credits     int
	AmountCents int64
}

type SubscriptionTier struct {
	Name             string
	CreditsPerPeriod int
	AmountCents      int64
}

var CreditPacks = map[string]CreditPack{
	"single": {Name: "One interview credit", Credits: 1, AmountCents: 1499},
	"bundle": {Name: "Three interview credits", Credits: 3, AmountCents: 3499},
}

var SubscriptionTiers = map[string]SubscriptionTier{
	"free":        {Name: "Free", CreditsPerPeriod: 0},
	"storyteller": {Name: "Storyteller", CreditsPerPeriod: 2, AmountCents: 999},
	"family":      {Name: "Family", CreditsPerPeriod: 5, AmountCents: 1999},
}

const (
	checkoutKindCredits      = "credits"
	checkoutKindSubscription = "subscription"
)

type StripeService struct {
	webhookSecret    string
	successURL       string
	cancelURL        string
	ignoreAPIVersion bool
}

func NewStripeService(secretKey, webhookSecret, successURL, cancelURL string, ignoreAPIVersion bool) *StripeService {
	stripe.Key = secretKey
	return &StripeService{
		webhookSecret:    webhookSecret,
		successURL:       successURL,
		cancelURL:        cancelURL,
		ignoreAPIVersion: ignoreAPIVersion,
	}
}

// CreateCreditCheckout starts a one-off payment for a credit pack.
func (s *StripeService) CreateCreditCheckout(userID, packKey string) (*stripe.CheckoutSession, error) {
	pack, ok := CreditPacks[packKey]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPriceSelection, packKey)
	}
	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{
			"card",
		}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String("usd"),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(pack.Name),
					},
					UnitAmount: stripe.Int64(pack.AmountCents),
				},
				Quantity: stripe.Int64(1),
			},
		},
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(s.successURL),
		CancelURL:         stripe.String(s.cancelURL),
		ClientReferenceID: stripe.String(userID),
		Metadata: map[string]string{
			"kind":    checkoutKindCredits,
			"pack":    packKey,
			"credits": strconv.Itoa(pack.Credits),
		},
	}

	return session.New(params)
}

// CreateSubscriptionCheckout starts a monthly subscription for a paid tier.
func (s *StripeService) CreateSubscriptionCheckout(userID, tierKey string) (*stripe.CheckoutSession, error) {
	tier, ok := SubscriptionTiers[tierKey]
	if !ok || tier.AmountCents == 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPriceSelection, tierKey)
	}
	metadata := map[string]string{
		"kind":    checkoutKindSubscription,
		"tier":    tierKey,
		"user_id": userID,
	}
	params := &stripe.CheckoutSessionParams{
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String("usd"),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(tier.Name + " plan"),
					},
					Recurring: &stripe.CheckoutSessionLineItemPriceDataRecurringParams{
						Interval: stripe.String("month"),
					},
					UnitAmount: stripe.Int64(tier.AmountCents),
				},
				Quantity: stripe.Int64(1),
			},
		},
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL:        stripe.String(s.successURL),
		CancelURL:         stripe.String(s.cancelURL),
		ClientReferenceID: stripe.String(userID),
		Metadata:          metadata,
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: metadata,
		},
	}

	return session.New(params)
}

// HandleWebhook verifies the Stripe-Signature header and decodes the event.
func (s *StripeService) HandleWebhook(payload []byte, signatureHeader string) (stripe.Event, error) {
	return webhook.ConstructEventWithOptions(payload, signatureHeader, s.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: s.ignoreAPIVersion,
	})
}
