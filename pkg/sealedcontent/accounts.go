package sealedcontent

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9]{3,20}$`)

// MaxPasswordLen is the longest password bcrypt accepts.
const MaxPasswordLen = 72

// ValidationError reports a rejected registration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateUsername checks the 3-20 alphanumeric rule.
func ValidateUsername(username string) error {
	if !usernamePattern.MatchString(username) {
		return &ValidationError{Field: "username", Message: "must be 3-20 letters or digits"}
	}
	return nil
}

// ValidatePassword requires 8 to 72 letters or digits with one lowercase
// letter, one uppercase letter and one digit.
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return &ValidationError{Field: "password", Message: "must be at least 8 characters"}
	}
	if len(password) > MaxPasswordLen {
		return &ValidationError{Field: "password", Message: fmt.Sprintf("must be at most %d characters", MaxPasswordLen)}
	}
	var lower, upper, digit bool
	for _, r := range password {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		default:
			return &ValidationError{Field: "password", Message: "must contain only letters and digits"}
		}
	}
	if !lower || !upper || !digit {
		return &ValidationError{Field: "password", Message: "must contain a lowercase letter, an uppercase letter and a digit"}
	}
	return nil
}

// SafeUsername is the case-folded form used for uniqueness and storage paths.
func SafeUsername(username string) string {
	return strings.ToLower(username)
}

// Account operations

func (s *service) Register(ctx context.Context, req RegisterRequest) (*Account, error) {
	if err := ValidateUsername(req.Username); err != nil {
		return nil, err
	}
	if err := ValidatePassword(req.Password); err != nil {
		return nil, err
	}

	safe := SafeUsername(req.Username)
	if _, err := s.repository.GetAccountByUsername(ctx, safe); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, ErrAccountNotFound) {
		return nil, fmt.Errorf("lookup username: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.passwordCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return nil, &ValidationError{Field: "password", Message: err.Error()}
	}
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	token, err := newBearerToken()
	if err != nil {
		return nil, err
	}

	account := &Account{
		ID:           uuid.New(),
		Username:     req.Username,
		SafeUsername: safe,
		PasswordHash: string(hash),
		Token:        token,
		Privilege:    req.Privilege,
		Files:        []string{},
		CreatedAt:    s.now(),
	}
	if err := s.repository.CreateAccount(ctx, account); err != nil {
		return nil, err
	}

	if err := s.eventSink.AccountRegistered(ctx, account); err != nil {
		s.logger.WarnContext(ctx, "event sink failed", "event", "account_registered", "error", err)
	}
	return account, nil
}

func (s *service) Authenticate(ctx context.Context, token string) (*Account, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}
	account, err := s.repository.GetAccountByToken(ctx, token)
	if errors.Is(err, ErrAccountNotFound) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}
	return account, nil
}

func (s *service) Login(ctx context.Context, username, password string) (*Account, error) {
	account, err := s.repository.GetAccountByUsername(ctx, SafeUsername(username))
	if errors.Is(err, ErrAccountNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("lookup username: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return account, nil
}
