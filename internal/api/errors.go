package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/vitalog/vitalog/internal/assistant"
	"github.com/vitalog/vitalog/internal/auth"
	"github.com/vitalog/vitalog/internal/chat"
	"github.com/vitalog/vitalog/internal/health"
	"github.com/vitalog/vitalog/internal/reports"
	"github.com/vitalog/vitalog/internal/settings"
)

// errorMapping pairs a domain sentinel with its HTTP projection.
type errorMapping struct {
	sentinel error
	status   int
	code     string
}

// errorMappings is the central sentinel-to-status table. First match wins;
// anything unmatched is a 500 with a generic body so internals never leak.
var errorMappings = []errorMapping{
	// Auth: bad credentials and bad tokens are 401; validation is 422.
	{auth.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
	{auth.ErrInvalidRefreshToken, http.StatusUnauthorized, "invalid_refresh_token"},
	{auth.ErrInvalidAccessToken, http.StatusUnauthorized, "invalid_token"},
	{auth.ErrEmailTaken, http.StatusUnprocessableEntity, "email_taken"},
	{auth.ErrInvalidEmail, http.StatusUnprocessableEntity, "invalid_email"},
	{auth.ErrPasswordTooShort, http.StatusUnprocessableEntity, "password_too_short"},
	{auth.ErrPasswordTooLong, http.StatusUnprocessableEntity, "password_too_long"},
	{auth.ErrInvalidDisplayName, http.StatusUnprocessableEntity, "invalid_display_name"},
	{auth.ErrUserNotFound, http.StatusNotFound, "not_found"},

	// Health data. Unknown and foreign-owned rows are both 404.
	{health.ErrNotFound, http.StatusNotFound, "not_found"},
	{health.ErrInvalidMetricType, http.StatusUnprocessableEntity, "invalid_metric_type"},
	{health.ErrInvalidValue, http.StatusUnprocessableEntity, "invalid_value"},
	{health.ErrInvalidSeverity, http.StatusUnprocessableEntity, "invalid_severity"},
	{health.ErrInvalidDateRange, http.StatusUnprocessableEntity, "invalid_date_range"},
	{health.ErrInvalidName, http.StatusUnprocessableEntity, "invalid_name"},

	// Settings.
	{settings.ErrInvalidSetting, http.StatusUnprocessableEntity, "invalid_setting"},

	// Chat.
	{chat.ErrNotFound, http.StatusNotFound, "not_found"},
	{chat.ErrEmptyMessage, http.StatusBadRequest, "empty_message"},
	{chat.ErrMessageTooLong, http.StatusUnprocessableEntity, "message_too_long"},
	{chat.ErrInvalidTitle, http.StatusUnprocessableEntity, "invalid_title"},

	// Reports.
	{reports.ErrNotFound, http.StatusNotFound, "not_found"},
	{reports.ErrInvalidDateRange, http.StatusUnprocessableEntity, "invalid_date_range"},
	{reports.ErrInvalidFormat, http.StatusBadRequest, "invalid_format"},

	// Assistant upstream failure.
	{assistant.ErrUnavailable, http.StatusBadGateway, "assistant_unavailable"},
}

// mapDomainError resolves an error against the sentinel table. Matches
// expose the wrapped message; everything else is a 500 with a generic body.
func mapDomainError(err error) (status int, code, message string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.sentinel) {
			return m.status, m.code, err.Error()
		}
	}
	return http.StatusInternalServerError, "internal_error", "internal server error"
}

// writeDomainError maps a domain error onto the JSON envelope.
func writeDomainError(w http.ResponseWriter, err error, logger *slog.Logger) {
	status, code, message := mapDomainError(err)
	if status == http.StatusInternalServerError {
		logger.Error("unhandled domain error", "error", err)
	}
	WriteError(w, status, code, message, logger)
}
