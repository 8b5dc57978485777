package api

import (
	"errors"

	apperrors "memory_stitcher_go_backend/internal/errors"
	"memory_stitcher_go_backend/internal/services"
)

// toHTTPError maps a service error onto the response the client sees.
func toHTTPError(err error) *apperrors.CustomError {
	var customErr *apperrors.CustomError
	if errors.As(err, &customErr) {
		return customErr
	}

	switch {
	case errors.Is(err, services.ErrInsufficientCredits):
		return apperrors.New402Error("You have no interview credits left")
	case errors.Is(err, services.ErrSessionNotFound):
		return apperrors.New404Error("Interview session not found")
	case errors.Is(err, services.ErrStoryNotFound):
		return apperrors.New404Error("Story not found")
	case errors.Is(err, services.ErrGroupNotFound):
		return apperrors.New404Error("Family group not found")
	case errors.Is(err, services.ErrUserNotFound):
		return apperrors.New404Error("User not found")
	case errors.Is(err, services.ErrPromptNotFound):
		return apperrors.New404Error("Prompt not found")
	case errors.Is(err, services.ErrNotGroupMember):
		return apperrors.New403Error()
	case errors.Is(err, services.ErrInvalidSessionState),
		errors.Is(err, services.ErrStoryVersionConflict):
		return apperrors.New409Error(err.Error())
	case errors.Is(err, services.ErrTooShortConversation),
		errors.Is(err, services.ErrInvalidStoryStatus),
		errors.Is(err, services.ErrInvalidGroupName):
		return apperrors.New422Error(err.Error())
	case errors.Is(err, services.ErrUnknownPriceSelection):
		return apperrors.New400Error(err.Error())
	case errors.Is(err, services.ErrGenerationFailed):
		return apperrors.New502Error(services.FailureReason(err), err)
	case errors.Is(err, services.ErrConfiguration):
		return apperrors.New503Error("Interviews are temporarily unavailable", err)
	}
	return apperrors.New500Error(err)
}
