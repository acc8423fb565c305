package handlers

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/carenethq/carenet-server/internal/features"
	"github.com/carenethq/carenet-server/internal/models"
	appErrors "github.com/carenethq/carenet-server/pkg/errors"
	"github.com/carenethq/carenet-server/pkg/response"
	appValidator "github.com/carenethq/carenet-server/pkg/validator"
)

func init() {
	// feature_code: the value must name a registered feature. Matching is
	// case-insensitive since handlers normalise codes before persisting.
	_ = appValidator.RegisterValidation("feature_code", func(fl validatorv10.FieldLevel) bool {
		return features.Known(strings.ToUpper(strings.TrimSpace(fl.Field().String())))
	})

	// lockout_reason: the value must be one of the recognised reasons.
	_ = appValidator.RegisterValidation("lockout_reason", func(fl validatorv10.FieldLevel) bool {
		switch models.LockoutReason(strings.ToUpper(strings.TrimSpace(fl.Field().String()))) {
		case models.LockoutReasonPaymentOverdue,
			models.LockoutReasonPolicyViolation,
			models.LockoutReasonManualReview:
			return true
		}
		return false
	})
}

// bindAndValidate binds the JSON payload into dest and runs struct validation
// rules. When either step fails an error response is written and false returned.
func bindAndValidate[T any](c *gin.Context, dest *T) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.NewBadRequest("invalid JSON payload"))
		return false
	}

	if err := appValidator.ValidateStruct(dest); err != nil {
		response.Error(c, appErrors.NewBadRequest(formatValidationError(err)))
		return false
	}

	return true
}

func formatValidationError(err error) string {
	if err == nil {
		return "invalid request payload"
	}

	ve, ok := err.(appValidator.FieldErrors)
	if !ok || len(ve) == 0 {
		return "invalid request payload"
	}

	messages := make([]string, 0, len(ve))
	for _, failure := range ve {
		field := strings.ReplaceAll(failure.Field, "_", " ")
		switch failure.Tag {
		case "required":
			messages = append(messages, fmt.Sprintf("%s is required", field))
		case "min":
			messages = append(messages, fmt.Sprintf("%s must have at least %s entries", field, failure.Param))
		case "gt":
			messages = append(messages, fmt.Sprintf("%s must be greater than %s", field, failure.Param))
		case "feature_code":
			messages = append(messages, fmt.Sprintf("%s contains an unknown feature code", field))
		case "lockout_reason":
			messages = append(messages, fmt.Sprintf("%s is not a recognised lockout reason", field))
		default:
			if failure.Param != "" {
				messages = append(messages, fmt.Sprintf("%s failed validation: %s=%s", field, failure.Tag, failure.Param))
			} else {
				messages = append(messages, fmt.Sprintf("%s failed validation: %s", field, failure.Tag))
			}
		}
	}
	return strings.Join(messages, "; ")
}

// normalizeFeatureCodes trims and uppercases feature codes so stored sets
// always compare against the canonical registry spelling.
func normalizeFeatureCodes(codes []string) []string {
	if len(codes) == 0 {
		return codes
	}
	out := make([]string, len(codes))
	for i, code := range codes {
		out[i] = strings.ToUpper(strings.TrimSpace(code))
	}
	return out
}
