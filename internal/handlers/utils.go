package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/o2a/bapsim/internal/chat"
	"github.com/o2a/bapsim/internal/services"
	"github.com/o2a/bapsim/internal/store"
	"go.uber.org/zap"
)

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// writeServiceError maps a service error to its status. notFound is the
// message used for store.ErrNotFound, fallback the one for unexpected
// failures, which are logged.
func writeServiceError(w http.ResponseWriter, logger *zap.Logger, err error, notFound, fallback string) {
	var validationErr *services.ValidationError
	var chatErr *chat.Error
	switch {
	case errors.As(err, &validationErr):
		writeError(w, http.StatusBadRequest, validationErr.Message)
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, notFound)
	case errors.Is(err, services.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, services.ErrUsernameTaken):
		writeError(w, http.StatusConflict, "username already exists")
	case errors.Is(err, services.ErrChatDisabled), errors.Is(err, services.ErrStorageDisabled):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &chatErr):
		status, message := chatStatus(chatErr.Kind)
		writeError(w, status, message)
	default:
		logger.Error(fallback, zap.Error(err))
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

func chatStatus(kind chat.Kind) (int, string) {
	switch kind {
	case chat.KindRateLimited:
		return http.StatusTooManyRequests, "chatbot usage limit reached, please try again later"
	case chat.KindBadRequest:
		return http.StatusBadRequest, "invalid chatbot request"
	case chat.KindAuth:
		return http.StatusUnauthorized, "chatbot authentication failed"
	case chat.KindTimeout:
		return http.StatusRequestTimeout, "chatbot request timed out, please try again"
	default:
		return http.StatusInternalServerError, "chatbot failed, please try again later"
	}
}

// newValidator reports fields by their json names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeAndValidate reads a JSON body into dst and runs struct validation.
// The returned message is safe to show to the client.
func decodeAndValidate(r *http.Request, v *validator.Validate, dst any) (string, bool) {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return "invalid request", false
	}
	if err := v.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return validationMessage(fieldErrs[0]), false
		}
		return "invalid request", false
	}
	return "", true
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", fe.Field())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
