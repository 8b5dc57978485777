package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v79"
)

// PurchaseLedger applies paid credits exactly once per provider id.
type PurchaseLedger interface {
	ApplyPurchase(ctx context.Context, providerID string, userID uuid.UUID, credits int) (applied bool, err error)
	ApplySubscription(ctx context.Context, providerID string, userID uuid.UUID, tier string, credits int) (applied bool, err error)
}

type PaymentService struct {
	ledger    PurchaseLedger
	credits   CreditStore
	publisher Publisher
}

func NewPaymentService(ledger PurchaseLedger, credits CreditStore, publisher Publisher) *PaymentService {
	return &PaymentService{ledger: ledger, credits: credits, publisher: publisher}
}

// ProcessEvent applies a verified Stripe event. Events it does not handle are ignored.
func (p *PaymentService) ProcessEvent(ctx context.Context, event stripe.Event) error {
	switch event.Type {
	case "checkout.session.completed":
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
			return fmt.Errorf("failed to parse checkout session: %w", err)
		}
		return p.processCheckoutSession(ctx, &cs)
	case "invoice.paid":
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return fmt.Errorf("failed to parse invoice: %w", err)
		}
		return p.processInvoice(ctx, &inv)
	default:
		log.Debug().Str("type", string(event.Type)).Msg("Unhandled Stripe event type")
	}
	return nil
}

func (p *PaymentService) processCheckoutSession(ctx context.Context, cs *stripe.CheckoutSession) error {
	userID, err := uuid.Parse(cs.ClientReferenceID)
	if err != nil {
		return fmt.Errorf("invalid user ID: %w", err)
	}

	switch cs.Metadata["kind"] {
	case checkoutKindCredits:
		if cs.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
			log.Info().Str("checkoutSession", cs.ID).Msg("Checkout completed without payment, skipping")
			return nil
		}
		pack, ok := CreditPacks[cs.Metadata["pack"]]
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownPriceSelection, cs.Metadata["pack"])
		}
		applied, err := p.ledger.ApplyPurchase(ctx, cs.ID, userID, pack.Credits)
		if err != nil {
			return fmt.Errorf("failed to apply credit purchase: %w", err)
		}
		p.afterApply(ctx, userID, cs.ID, applied)
	case checkoutKindSubscription:
		return p.applyTier(ctx, cs.ID, userID, cs.Metadata["tier"])
	default:
		return fmt.Errorf("unknown checkout kind %q", cs.Metadata["kind"])
	}
	return nil
}

func (p *PaymentService) processInvoice(ctx context.Context, inv *stripe.Invoice) error {
	// the first invoice is covered by checkout.session.completed
	if inv.BillingReason != stripe.InvoiceBillingReasonSubscriptionCycle {
		return nil
	}
	if inv.SubscriptionDetails == nil {
		return fmt.Errorf("invoice %s has no subscription details", inv.ID)
	}
	metadata := inv.SubscriptionDetails.Metadata
	userID, err := uuid.Parse(metadata["user_id"])
	if err != nil {
		return fmt.Errorf("invalid user ID on invoice %s: %w", inv.ID, err)
	}
	return p.applyTier(ctx, inv.ID, userID, metadata["tier"])
}

func (p *PaymentService) applyTier(ctx context.Context, providerID string, userID uuid.UUID, tierKey string) error {
	tier, ok := SubscriptionTiers[tierKey]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPriceSelection, tierKey)
	}
	applied, err := p.ledger.ApplySubscription(ctx, providerID, userID, tierKey, tier.CreditsPerPeriod)
	if err != nil {
		return fmt.Errorf("failed to apply subscription: %w", err)
	}
	p.afterApply(ctx, userID, providerID, applied)
	return nil
}

func (p *PaymentService) afterApply(ctx context.Context, userID uuid.UUID, providerID string, applied bool) {
	if !applied {
		log.Info().Str("providerID", providerID).Msg("Payment already processed, skipping")
		return
	}
	log.Info().Str("providerID", providerID).Str("userID", userID.String()).Msg("Credits applied")
	if p.publisher == nil || p.credits == nil {
		return
	}
	balance, err := p.credits.GetBalance(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Str("userID", userID.String()).Msg("Failed to read balance for credit update")
		return
	}
	p.publisher.Publish(CreditTopic(userID), CreditEvent{Type: "credit_update", Balance: balance})
}
