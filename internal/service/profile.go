package service

import (
	"context"
	"strings"
	"time"
	"unicode"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/granaapp/grana-go/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 12

// Profile returns the current user profile. The PIN hash is stripped; only
// HasPIN is ever surfaced.
func (s *Finance) Profile(ctx context.Context) domain.UserProfile {
	_, span := tracer.Start(ctx, "Finance.Profile")
	defer span.End()
	profile := s.store.Profile()
	profile.PINHash = ""
	return profile
}

// PINRequired reports whether financial routes are behind a PIN.
func (s *Finance) PINRequired() bool {
	profile := s.store.Profile()
	return profile.HasPIN()
}

// UpdateProfile replaces name and avatar. PIN state is untouched.
func (s *Finance) UpdateProfile(ctx context.Context, name, avatar string) (updated domain.UserProfile, err error) {
	ctx, span := tracer.Start(ctx, "Finance.UpdateProfile")
	defer span.End()
	start := time.Now()
	defer func() { s.observe("profile.update", start, err) }()

	if strings.TrimSpace(name) == "" {
		err = &domain.ErrValidation{Field: "name", Message: "must not be empty"}
		return domain.UserProfile{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	profile := s.store.Profile()
	profile.Name = name
	profile.Avatar = avatar
	if err = s.store.PutProfile(ctx, profile); err != nil {
		return domain.UserProfile{}, err
	}
	profile.PINHash = ""
	return profile, nil
}

// CompleteOnboarding sets up the initial profile, a single checking account
// with the given opening balance and the default category set. Any prior
// transactions, goals and budgets are cleared.
func (s *Finance) CompleteOnboarding(ctx context.Context, name string, openingBalance float64, now time.Time) (err error) {
	ctx, span := tracer.Start(ctx, "Finance.CompleteOnboarding")
	defer span.End()
	start := time.Now()
	defer func() { s.observe("profile.onboarding", start, err) }()

	if strings.TrimSpace(name) == "" {
		err = &domain.ErrValidation{Field: "name", Message: "must not be empty"}
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	profile := s.store.Profile()
	profile.Name = name
	profile.OnboardingCompleted = true
	account := domain.Account{
		ID:      uuid.NewString(),
		Name:    "Main Account",
		Kind:    domain.AccountChecking,
		Balance: openingBalance,
		Color:   "#3b82f6",
		Icon:    "bank",
	}
	if err = s.store.SeedOnboarding(ctx, profile, account, domain.DefaultCategories()); err != nil {
		return err
	}
	s.logger.Info("onboarding completed", zap.String("name", name))
	s.store.Notify("Welcome aboard! Your account is ready.", domain.NotifySuccess, now)
	return nil
}

func validatePIN(pin string) error {
	if len(pin) != 4 {
		return &domain.ErrValidation{Field: "pin", Message: "must be exactly 4 digits"}
	}
	for _, r := range pin {
		if !unicode.IsDigit(r) {
			return &domain.ErrValidation{Field: "pin", Message: "must be exactly 4 digits"}
		}
	}
	return nil
}

// SetPIN enables the privacy lock, storing only a bcrypt hash. An empty
// PIN disables the lock.
func (s *Finance) SetPIN(ctx context.Context, pin string) (err error) {
	ctx, span := tracer.Start(ctx, "Finance.SetPIN")
	defer span.End()
	start := time.Now()
	defer func() { s.observe("profile.set_pin", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	profile := s.store.Profile()
	if pin == "" {
		profile.PINHash = ""
		return s.store.PutProfile(ctx, profile)
	}
	if err = validatePIN(pin); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcryptCost)
	if err != nil {
		return err
	}
	profile.PINHash = string(hash)
	if err = s.store.PutProfile(ctx, profile); err != nil {
		return err
	}
	s.logger.Info("privacy lock enabled")
	return nil
}

// VerifyPIN checks the PIN and, on success, issues a short-lived unlock
// token for the financial routes.
func (s *Finance) VerifyPIN(ctx context.Context, pin string, now time.Time) (token string, err error) {
	_, span := tracer.Start(ctx, "Finance.VerifyPIN")
	defer span.End()
	start := time.Now()
	defer func() { s.observe("profile.verify_pin", start, err) }()

	profile := s.store.Profile()
	if !profile.HasPIN() {
		err = &domain.ErrConflict{Message: "no PIN is set"}
		return "", err
	}
	if bcrypt.CompareHashAndPassword([]byte(profile.PINHash), []byte(pin)) != nil {
		err = &domain.ErrUnauthorized{Message: "invalid PIN"}
		return "", err
	}

	claims := jwt.RegisteredClaims{
		Subject:   "unlock",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.unlockTTL)),
	}
	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return "", err
	}
	return token, nil
}

// ValidateUnlockToken checks an unlock token issued by VerifyPIN.
func (s *Finance) ValidateUnlockToken(tokenString string) error {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, &domain.ErrUnauthorized{Message: "unexpected signing method"}
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return &domain.ErrUnauthorized{Message: "invalid or expired unlock token"}
	}
	return nil
}
