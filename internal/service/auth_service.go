package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"session-auth/internal/domain"
	"session-auth/internal/repository"
)

// AuthService coordina registro, login y verificación de sesión.
type AuthService struct {
	logger   *zap.Logger
	users    repository.UserRepository
	hasher   PasswordHasher
	tokens   TokenIssuer
	validate *validator.Validate
	now      func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

func NewAuthService(logger *zap.Logger, users repository.UserRepository, hasher PasswordHasher, tokens TokenIssuer) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		logger:   logger,
		users:    users,
		hasher:   hasher,
		tokens:   tokens,
		validate: newValidator(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// Session es el resultado de un registro o login exitoso.
type Session struct {
	User      domain.User
	Token     string
	ExpiresAt time.Time
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (Session, error) {
	form := registrationForm{
		Name:     strings.TrimSpace(input.Name),
		Email:    strings.TrimSpace(input.Email),
		Password: input.Password,
	}
	if messages := registrationViolations(s.validate, form); len(messages) > 0 {
		AuthOperations.WithLabelValues("register", OutcomeValidationError).Inc()
		return Session{}, &ValidationError{Messages: messages}
	}

	_, err := s.users.GetByEmail(ctx, form.Email)
	switch {
	case err == nil:
		AuthOperations.WithLabelValues("register", OutcomeDuplicateEmail).Inc()
		return Session{}, &ValidationError{Messages: []string{msgUserExists}}
	case !errors.Is(err, repository.ErrNotFound):
		return Session{}, s.storeFailure("register", "lookup email", err)
	}

	start := time.Now()
	hash, err := s.hasher.Hash(ctx, form.Password)
	observeHash("hash", start)
	if err != nil {
		AuthOperations.WithLabelValues("register", OutcomeInternalError).Inc()
		return Session{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.Create(ctx, domain.User{
		Name:         form.Name,
		Email:        form.Email,
		PasswordHash: hash,
		CreationDate: s.now(),
	})
	if errors.Is(err, repository.ErrDuplicateEmail) {
		// otra petición registró el mismo email entre la consulta y el insert
		AuthOperations.WithLabelValues("register", OutcomeDuplicateEmail).Inc()
		return Session{}, &ValidationError{Messages: []string{msgUserExists}}
	}
	if err != nil {
		return Session{}, s.storeFailure("register", "create user", err)
	}

	session, err := s.issue(user)
	if err != nil {
		AuthOperations.WithLabelValues("register", OutcomeInternalError).Inc()
		return Session{}, err
	}
	AuthOperations.WithLabelValues("register", OutcomeSuccess).Inc()
	s.logger.Info("user registered", zap.String("user_id", user.ID))
	return session, nil
}

// Login autentica por email y contraseña. Email inexistente y contraseña incorrecta
// devuelven el mismo ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string) (Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		s.burnVerify(ctx, password)
		AuthOperations.WithLabelValues("login", OutcomeInvalidCredentials).Inc()
		return Session{}, ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		s.burnVerify(ctx, password)
		AuthOperations.WithLabelValues("login", OutcomeInvalidCredentials).Inc()
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, s.storeFailure("login", "lookup email", err)
	}

	start := time.Now()
	ok := s.hasher.Verify(ctx, password, user.PasswordHash)
	observeHash("verify", start)
	if !ok {
		AuthOperations.WithLabelValues("login", OutcomeInvalidCredentials).Inc()
		return Session{}, ErrInvalidCredentials
	}

	now := s.now()
	if err := s.users.TouchLastAccess(ctx, user.ID, now); err != nil {
		s.logger.Warn("update last access failed", zap.String("user_id", user.ID), zap.Error(err))
	} else {
		user.LastAccess = &now
	}

	session, err := s.issue(user)
	if err != nil {
		AuthOperations.WithLabelValues("login", OutcomeInternalError).Inc()
		return Session{}, err
	}
	AuthOperations.WithLabelValues("login", OutcomeSuccess).Inc()
	s.logger.Info("user logged in", zap.String("user_id", user.ID))
	return session, nil
}

// Authenticate resuelve el usuario dueño de un token. Devuelve ErrJWTExpired,
// ErrJWTInvalid, ErrUserNotFound o *StoreError.
func (s *AuthService) Authenticate(ctx context.Context, token string) (domain.User, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		result := TokenResultInvalid
		if errors.Is(err, ErrJWTExpired) {
			result = TokenResultExpired
		}
		TokenVerifications.WithLabelValues(result).Inc()
		s.logger.Warn("token rejected", zap.String("reason", result))
		return domain.User{}, err
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		TokenVerifications.WithLabelValues(TokenResultUserNotFound).Inc()
		s.logger.Warn("token rejected", zap.String("reason", TokenResultUserNotFound), zap.String("user_id", claims.UserID))
		return domain.User{}, ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, s.storeFailure("authenticate", "lookup user", err)
	}
	TokenVerifications.WithLabelValues(TokenResultOK).Inc()
	return user, nil
}

func (s *AuthService) issue(user domain.User) (Session, error) {
	token, expiresAt, err := s.tokens.Issue(user.ID)
	if err != nil {
		return Session{}, fmt.Errorf("issue token: %w", err)
	}
	return Session{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

func (s *AuthService) storeFailure(operation, op string, err error) error {
	AuthOperations.WithLabelValues(operation, OutcomeStoreError).Inc()
	s.logger.Error("credential store failure", zap.String("operation", operation), zap.String("op", op), zap.Error(err))
	return &StoreError{Op: op, Err: err}
}

// burnVerify gasta un Verify contra un hash ficticio para que un email inexistente
// tarde lo mismo que una contraseña incorrecta.
func (s *AuthService) burnVerify(ctx context.Context, password string) {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash(ctx, "dummy-password-for-timing")
		if err == nil {
			s.dummyHash = hash
		}
	})
	if s.dummyHash == "" {
		return
	}
	_ = s.hasher.Verify(ctx, password, s.dummyHash)
}
