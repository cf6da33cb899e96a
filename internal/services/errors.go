package services

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	apperrors "github.com/tacticalpanel/panel/pkg/errors"
)

var (
	// ErrUsernameTaken is returned when a username is already registered.
	ErrUsernameTaken = apperrors.New("USERNAME_TAKEN", "Username already registered", http.StatusBadRequest)
	// ErrAdminExists is returned by first-time setup once the bootstrap admin exists.
	ErrAdminExists = apperrors.New("ADMIN_EXISTS", "Admin already exists", http.StatusBadRequest)
	// ErrTOTPRequired signals a two-step login: the password was right but a code is needed.
	ErrTOTPRequired = apperrors.New("TOTP_REQUIRED", "2FA code required", http.StatusUnauthorized)
	// ErrTOTPInvalid rejects a login carrying a wrong 2FA code.
	ErrTOTPInvalid = apperrors.New("TOTP_INVALID", "Invalid 2FA code", http.StatusUnauthorized)
	// ErrTOTPCodeRejected rejects a wrong code while enrolling.
	ErrTOTPCodeRejected = apperrors.New("TOTP_CODE_REJECTED", "Invalid 2FA code", http.StatusBadRequest)
	ErrTOTPNotSetUp     = apperrors.New("TOTP_NOT_SET_UP", "2FA setup has not been started", http.StatusBadRequest)
	ErrTOTPEnabled      = apperrors.New("TOTP_ALREADY_ENABLED", "2FA is already enabled", http.StatusBadRequest)
	ErrTOTPNotEnabled   = apperrors.New("TOTP_NOT_ENABLED", "2FA is not enabled", http.StatusBadRequest)
	// ErrIncorrectPassword rejects re-authentication inside an authenticated session.
	ErrIncorrectPassword = apperrors.New("INCORRECT_PASSWORD", "Incorrect password", http.StatusBadRequest)
	// ErrResetFailed covers every reset failure so callers learn nothing about which part was wrong.
	ErrResetFailed = apperrors.New("RESET_FAILED", "Invalid username or security answers", http.StatusBadRequest)
	// ErrSecurityQuestionsNotFound is returned when a user has no recovery questions configured.
	ErrSecurityQuestionsNotFound = apperrors.New("SECURITY_QUESTIONS_NOT_FOUND", "Security questions not found", http.StatusNotFound)
	ErrUserNotFound              = apperrors.New("USER_NOT_FOUND", "User not found", http.StatusNotFound)
	ErrSubAdminNotFound          = apperrors.New("SUB_ADMIN_NOT_FOUND", "Sub-admin not found", http.StatusNotFound)
	ErrServerNotFound            = apperrors.New("SERVER_NOT_FOUND", "Server not found", http.StatusNotFound)
	ErrTooManyAttempts           = apperrors.New("TOO_MANY_ATTEMPTS", "Too many attempts, try again later", http.StatusTooManyRequests)
)

// weakPassword wraps policy violations into a 400 response.
func weakPassword(err error) *apperrors.AppError {
	return apperrors.New("WEAK_PASSWORD", err.Error(), http.StatusBadRequest)
}

// isUniqueConstraintError detects database uniqueness constraint violations across vendors.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr != nil && pgErr.Code == "23505" {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr != nil && myErr.Number == 1062 {
		return true
	}

	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "unique") ||
		strings.Contains(lower, "duplicate")
}
