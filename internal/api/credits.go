package api

import (
	"io"
	"net/http"
	"strconv"

	apperrors "memory_stitcher_go_backend/internal/errors"
	"memory_stitcher_go_backend/internal/models"
	"memory_stitcher_go_backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const maxWebhookBodyBytes = int64(65536)

func getCreditsHandler(credits Credits) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := requireUser(c)
		if !ok {
			return
		}
		balance, err := credits.GetBalance(c.Request.Context(), user.ID)
		if err != nil {
			apperrors.HandleError(c, toHTTPError(err))
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"balance":           balance,
			"total":             balance.Total(),
			"subscription_tier": user.SubscriptionTier,
		})
	}
}

func creditCheckoutHandler(checkout Checkout) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := requireUser(c)
		if !ok {
			return
		}
		var request struct {
			Pack string `json:"pack" binding:"required"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			apperrors.HandleError(c, apperrors.New400Error(err.Error()))
			return
		}
		session, err := checkout.CreateCreditCheckout(user.ID.String(), request.Pack)
		if err != nil {
			apperrors.HandleError(c, toHTTPError(err))
			return
		}
		c.JSON(http.StatusOK, gin.H{"session_id": session.ID, "url": session.URL})
	}
}

func subscriptionCheckoutHandler(checkout Checkout) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := requireUser(c)
		if !ok {
			return
		}
		var request struct {
			Tier string `json:"tier" binding:"required"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			apperrors.HandleError(c, apperrors.New400Error(err.Error()))
			return
		}
		session, err := checkout.CreateSubscriptionCheckout(user.ID.String(), request.Tier)
		if err != nil {
			apperrors.HandleError(c, toHTTPError(err))
			return
		}
		c.JSON(http.StatusOK, gin.H{"session_id": session.ID, "url": session.URL})
	}
}

func stripeWebhookHandler(checkout Checkout, payments Payments) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodyBytes)

		payload, err := io.ReadAll(c.Request.Body)
		if err != nil {
			log.Error().Err(err).Msg("Error reading webhook body")
			apperrors.HandleError(c, apperrors.New503Error("Error reading request body", err))
			return
		}

		event, err := checkout.HandleWebhook(payload, c.GetHeader("Stripe-Signature"))
		if err != nil {
			log.Warn().Err(err).Msg("Error verifying webhook signature")
			apperrors.HandleError(c, apperrors.New400Error("Failed to verify webhook signature"))
			return
		}

		if err := payments.ProcessEvent(c.Request.Context(), event); err != nil {
			log.Error().Err(err).Str("eventID", event.ID).Str("type", string(event.Type)).Msg("Error processing webhook event")
			apperrors.HandleError(c, apperrors.New500Error(err))
			return
		}

		c.JSON(http.StatusOK, gin.H{"received": true})
	}
}

func grantCreditsHandler(credits Credits) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := uuidParam(c, "id")
		if !ok {
			return
		}
		var request struct {
			Pool  string `json:"pool" binding:"required,oneof=subscription purchased"`
			Delta int    `json:"delta" binding:"required"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			apperrors.HandleError(c, apperrors.New400Error(err.Error()))
			return
		}
		balance, err := credits.AdjustCredits(c.Request.Context(), userID, services.CreditPool(request.Pool), request.Delta)
		if err != nil {
			apperrors.HandleError(c, toHTTPError(err))
			return
		}
		admin, _ := requireUser(c)
		log.Info().
			Str("userID", userID.String()).
			Str("adminID", admin.ID.String()).
			Str("pool", request.Pool).
			Int("delta", request.Delta).
			Msg("Credits adjusted by admin")
		c.JSON(http.StatusOK, gin.H{"balance": balance})
	}
}

func listPromptsHandler(prompts Prompts) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := prompts.ListPrompts(c.Request.Context())
		if err != nil {
			apperrors.HandleError(c, toHTTPError(err))
			return
		}
		views := make([]gin.H, len(list))
		for i := range list {
			views[i] = promptView(&list[i])
		}
		c.JSON(http.StatusOK, gin.H{"prompts": views})
	}
}

func createPromptHandler(prompts Prompts) gin.HandlerFunc {
	return func(c *gin.Context) {
		var request struct {
			Type    string  `json:"type"`
			Content string  `json:"content" binding:"required"`
			Active  bool    `json:"active"`
			ABGroup *string `json:"ab_group"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			apperrors.HandleError(c, apperrors.New400Error(err.Error()))
			return
		}
		if request.Type == "" {
			request.Type = models.PromptTypeInterview
		}
		prompt := &models.SystemPrompt{
			Type:    request.Type,
			Content: request.Content,
			Active:  request.Active,
			ABGroup: request.ABGroup,
		}
		if err := prompts.CreatePrompt(c.Request.Context(), prompt); err != nil {
			apperrors.HandleError(c, toHTTPError(err))
			return
		}
		c.JSON(http.StatusCreated, gin.H{"prompt": promptView(prompt)})
	}
}

func setPromptActiveHandler(prompts Prompts) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			apperrors.HandleError(c, apperrors.New400Error("Invalid id"))
			return
		}
		var request struct {
			Active *bool `json:"active" binding:"required"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			apperrors.HandleError(c, apperrors.New400Error(err.Error()))
			return
		}
		if err := prompts.SetPromptActive(c.Request.Context(), uint(id), *request.Active); err != nil {
			apperrors.HandleError(c, toHTTPError(err))
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": id, "active": *request.Active})
	}
}

func promptView(p *models.SystemPrompt) gin.H {
	return gin.H{
		"id":       p.ID,
		"type":     p.Type,
		"content":  p.Content,
		"active":   p.Active,
		"ab_group": p.ABGroup,
	}
}

