package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/logging"
	"storefront/internal/notify"
	"storefront/internal/repository"
)

const verificationCodeTTL = 10 * time.Minute

// Credentials хеширование паролей и выпуск токенов доступа
type Credentials interface {
	Hash(secret string) (string, error)
	Verify(secret, digest string) bool
	IssueToken(subject string) (string, error)
}

// AuthService регистрация, подтверждение e-mail и вход
type AuthService struct {
	users    repository.UserRepository
	creds    Credentials
	notifier notify.Notifier
	now      func() time.Time
}

func NewAuthService(users repository.UserRepository, creds Credentials, notifier notify.Notifier) *AuthService {
	return &AuthService{users: users, creds: creds, notifier: notifier, now: func() time.Time { return time.Now().UTC() }}
}

type SignUpInput struct {
	FirstName       string
	Email           string
	Password        string
	ConfirmPassword string
}

func (in *SignUpInput) normalize() error {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if n := len([]rune(in.FirstName)); n < 2 || n > 50 {
		return fmt.Errorf("%w: first name must be 2 to 50 characters long", domain.ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return fmt.Errorf("%w: invalid email", domain.ErrInvalidInput)
	}
	if len(in.Password) < 6 {
		return fmt.Errorf("%w: password must be at least 6 characters", domain.ErrInvalidInput)
	}
	if in.Password != in.ConfirmPassword {
		return fmt.Errorf("%w: passwords do not match", domain.ErrInvalidInput)
	}
	return nil
}

// SignUp создаёт неподтверждённую учётную запись и отправляет код.
// Ошибка отправки письма только логируется.
func (s *AuthService) SignUp(ctx context.Context, in SignUpInput) (*domain.User, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	if _, err := s.users.GetByEmail(ctx, in.Email); err == nil {
		return nil, domain.ErrEmailTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	digest, err := s.creds.Hash(in.Password)
	if err != nil {
		return nil, err
	}
	code, err := newVerificationCode()
	if err != nil {
		return nil, err
	}
	exp := s.now().Add(verificationCodeTTL)
	u := &domain.User{
		Email:                 in.Email,
		PasswordHash:          digest,
		FirstName:             in.FirstName,
		AccountStatus:         domain.AccountUnverified,
		VerificationCode:      code,
		VerificationExpiresAt: &exp,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, domain.ErrEmailTaken
		}
		return nil, err
	}
	err = s.notifier.Send(ctx, u.Email, notify.TemplateEmailVerification, notify.VerificationData{
		FirstName:        u.FirstName,
		Code:             code,
		ExpiresInMinutes: int(verificationCodeTTL / time.Minute),
	})
	if err != nil {
		logging.FromContext(ctx).Warn("verification_email_failed", zap.String("user_id", u.ID), zap.Error(err))
	}
	return u, nil
}

func (s *AuthService) VerifyEmail(ctx context.Context, email, code string) error {
	u, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, repository.ErrNotFound) {
		return domain.ErrUserNotFound
	}
	if err != nil {
		return err
	}
	if u.AccountStatus == domain.AccountVerified {
		return domain.ErrAlreadyVerified
	}
	if u.VerificationCode == "" || subtle.ConstantTimeCompare([]byte(u.VerificationCode), []byte(code)) != 1 {
		return domain.ErrInvalidCode
	}
	if u.VerificationExpiresAt != nil && s.now().After(*u.VerificationExpiresAt) {
		return domain.ErrInvalidCode
	}
	u.AccountStatus = domain.AccountVerified
	u.VerificationCode = ""
	u.VerificationExpiresAt = nil
	return s.users.Update(ctx, u)
}

type LoginResult struct {
	User  *domain.User `json:"user"`
	Token string       `json:"token"`
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	u, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, domain.ErrBadCredentials
	}
	if err != nil {
		return nil, err
	}
	if u.AccountStatus != domain.AccountVerified {
		return nil, domain.ErrNotVerified
	}
	if !s.creds.Verify(password, u.PasswordHash) {
		return nil, domain.ErrBadCredentials
	}
	now := s.now()
	u.LastLogin = &now
	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}
	token, err := s.creds.IssueToken(u.ID)
	if err != nil {
		return nil, err
	}
	return &LoginResult{User: u, Token: token}, nil
}

// newVerificationCode шестизначный код из crypto/rand
func newVerificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("verification code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
