package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"session-auth/internal/domain"
	"session-auth/internal/repository"
)

type stubUserRepo struct {
	*repository.MemoryUserRepository

	getByEmailErr error
	getByIDErr    error
	createErr     error
	touchErr      error
	touchCalls    int
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{MemoryUserRepository: repository.NewMemoryUserRepository()}
}

func (m *stubUserRepo) Create(ctx context.Context, user domain.User) (domain.User, error) {
	if m.createErr != nil {
		return domain.User{}, m.createErr
	}
	return m.MemoryUserRepository.Create(ctx, user)
}

func (m *stubUserRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	if m.getByEmailErr != nil {
		return domain.User{}, m.getByEmailErr
	}
	return m.MemoryUserRepository.GetByEmail(ctx, email)
}

func (m *stubUserRepo) GetByID(ctx context.Context, id string) (domain.User, error) {
	if m.getByIDErr != nil {
		return domain.User{}, m.getByIDErr
	}
	return m.MemoryUserRepository.GetByID(ctx, id)
}

func (m *stubUserRepo) TouchLastAccess(ctx context.Context, id string, at time.Time) error {
	m.touchCalls++
	if m.touchErr != nil {
		return m.touchErr
	}
	return m.MemoryUserRepository.TouchLastAccess(ctx, id, at)
}

func newTestAuthService(repo repository.UserRepository) (*AuthService, *JWTService) {
	tokens := NewJWTService("secret", 24*time.Hour, "session-auth")
	svc := NewAuthService(zap.NewNop(), repo, NewBcryptHasher(bcrypt.MinCost, 4), tokens)
	return svc, tokens
}

func register(t *testing.T, svc *AuthService, name, email, password string) Session {
	t.Helper()
	session, err := svc.Register(context.Background(), RegisterInput{Name: name, Email: email, Password: password})
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	return session
}

func TestAuthServiceRegister_Success(t *testing.T) {
	repo := newStubUserRepo()
	svc, tokens := newTestAuthService(repo)

	session := register(t, svc, "  Ana  ", "ana@x.com", "secret1")
	if session.User.ID == "" || session.Token == "" {
		t.Fatalf("expected id and token, got %+v", session)
	}
	if session.User.Name != "Ana" {
		t.Fatalf("expected trimmed name, got %q", session.User.Name)
	}
	if session.User.CreationDate.IsZero() {
		t.Fatalf("expected creation date")
	}

	stored, err := repo.GetByEmail(context.Background(), "ana@x.com")
	if err != nil {
		t.Fatalf("expected stored user, got %v", err)
	}
	if stored.PasswordHash == "" || stored.PasswordHash == "secret1" {
		t.Fatalf("expected bcrypt hash, got %q", stored.PasswordHash)
	}
	if bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("secret1")) != nil {
		t.Fatalf("stored hash does not match password")
	}

	claims, err := tokens.Verify(session.Token)
	if err != nil {
		t.Fatalf("verify token: %v", err)
	}
	if claims.UserID != stored.ID {
		t.Fatalf("token subject %q does not match stored id %q", claims.UserID, stored.ID)
	}
}

func TestAuthServiceRegister_CollectsAllViolations(t *testing.T) {
	svc, _ := newTestAuthService(newStubUserRepo())

	_, err := svc.Register(context.Background(), RegisterInput{Name: "Al", Email: "not-an-email", Password: "123"})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	want := []string{
		"name must be at least 3 characters",
		"email is not valid",
		"password must be at least 6 characters",
	}
	if len(vErr.Messages) != len(want) {
		t.Fatalf("expected %d messages, got %v", len(want), vErr.Messages)
	}
	for i, msg := range want {
		if vErr.Messages[i] != msg {
			t.Fatalf("message %d: expected %q, got %q", i, msg, vErr.Messages[i])
		}
	}
	if vErr.Error() != strings.Join(want, ", ") {
		t.Fatalf("unexpected joined message %q", vErr.Error())
	}
}

func TestAuthServiceRegister_RequiredFields(t *testing.T) {
	svc, _ := newTestAuthService(newStubUserRepo())

	_, err := svc.Register(context.Background(), RegisterInput{Name: "   "})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(vErr.Messages) != 3 || vErr.Messages[0] != "name is required" {
		t.Fatalf("unexpected messages %v", vErr.Messages)
	}
}

func TestAuthServiceRegister_EmailShapes(t *testing.T) {
	svc, _ := newTestAuthService(newStubUserRepo())

	for _, email := range []string{"ana@x", "ana x@x.com", "@x.com", "ana@@x.com", "ana@x."} {
		_, err := svc.Register(context.Background(), RegisterInput{Name: "Ana", Email: email, Password: "secret1"})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError for %q, got %v", email, err)
		}
	}
}

func TestAuthServiceRegister_PasswordTooLongForBcrypt(t *testing.T) {
	svc, _ := newTestAuthService(newStubUserRepo())

	_, err := svc.Register(context.Background(), RegisterInput{Name: "Ana", Email: "ana@x.com", Password: strings.Repeat("a", 73)})
	var vErr *ValidationError
	if !errors.As(err, &vErr) || vErr.Messages[0] != "password must be at most 72 bytes" {
		t.Fatalf("expected max bytes violation, got %v", err)
	}
}

func TestAuthServiceRegister_DuplicateEmail(t *testing.T) {
	repo := newStubUserRepo()
	svc, _ := newTestAuthService(repo)
	register(t, svc, "Ana", "ana@x.com", "secret1")

	_, err := svc.Register(context.Background(), RegisterInput{Name: "Otra", Email: "ana@x.com", Password: "secret2"})
	var vErr *ValidationError
	if !errors.As(err, &vErr) || vErr.Error() != "user already exists" {
		t.Fatalf("expected duplicate ValidationError, got %v", err)
	}

	stored, _ := repo.GetByEmail(context.Background(), "ana@x.com")
	if stored.Name != "Ana" {
		t.Fatalf("expected first record untouched, got %+v", stored)
	}
}

func TestAuthServiceRegister_StoreLevelDuplicate(t *testing.T) {
	repo := newStubUserRepo()
	repo.createErr = repository.ErrDuplicateEmail
	svc, _ := newTestAuthService(repo)

	_, err := svc.Register(context.Background(), RegisterInput{Name: "Ana", Email: "ana@x.com", Password: "secret1"})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError for store-level duplicate, got %v", err)
	}
}

func TestAuthServiceRegister_ConcurrentDuplicates(t *testing.T) {
	svc, _ := newTestAuthService(newStubUserRepo())

	const attempts = 6
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		rejected  int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Register(context.Background(), RegisterInput{Name: "Ana", Email: "ana@x.com", Password: "secret1"})
			var vErr *ValidationError
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.As(err, &vErr):
				rejected++
			}
		}()
	}
	wg.Wait()

	if successes != 1 || rejected != attempts-1 {
		t.Fatalf("expected exactly one success, got %d successes and %d rejections", successes, rejected)
	}
}

func TestAuthServiceRegister_StoreFailure(t *testing.T) {
	repo := newStubUserRepo()
	repo.getByEmailErr = errors.New("connection refused")
	svc, _ := newTestAuthService(repo)

	_, err := svc.Register(context.Background(), RegisterInput{Name: "Ana", Email: "ana@x.com", Password: "secret1"})
	var sErr *StoreError
	if !errors.As(err, &sErr) {
		t.Fatalf("expected StoreError, got %v", err)
	}
	if sErr.Op != "lookup email" {
		t.Fatalf("unexpected op %q", sErr.Op)
	}
}

func TestAuthServiceLogin_Success(t *testing.T) {
	repo := newStubUserRepo()
	svc, tokens := newTestAuthService(repo)
	registered := register(t, svc, "Ana", "ana@x.com", "secret1")

	session, err := svc.Login(context.Background(), "ana@x.com", "secret1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if session.User.ID != registered.User.ID {
		t.Fatalf("expected same user id")
	}
	if session.User.LastAccess == nil {
		t.Fatalf("expected last access to be set")
	}
	stored, _ := repo.GetByID(context.Background(), registered.User.ID)
	if stored.LastAccess == nil {
		t.Fatalf("expected last access persisted")
	}
	if _, err := tokens.Verify(session.Token); err != nil {
		t.Fatalf("expected valid login token, got %v", err)
	}
}

func TestAuthServiceLogin_NoEnumeration(t *testing.T) {
	svc, _ := newTestAuthService(newStubUserRepo())
	register(t, svc, "Ana", "ana@x.com", "secret1")

	_, wrongPassword := svc.Login(context.Background(), "ana@x.com", "wrong-password")
	_, unknownEmail := svc.Login(context.Background(), "nobody@x.com", "secret1")
	_, emptyFields := svc.Login(context.Background(), "", "")

	for _, err := range []error{wrongPassword, unknownEmail, emptyFields} {
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	}
	if wrongPassword.Error() != unknownEmail.Error() {
		t.Fatalf("messages differ: %q vs %q", wrongPassword.Error(), unknownEmail.Error())
	}
}

func TestAuthServiceLogin_LastAccessFailureIsBestEffort(t *testing.T) {
	repo := newStubUserRepo()
	svc, _ := newTestAuthService(repo)
	register(t, svc, "Ana", "ana@x.com", "secret1")
	repo.touchErr = errors.New("write timeout")

	session, err := svc.Login(context.Background(), "ana@x.com", "secret1")
	if err != nil {
		t.Fatalf("expected login to succeed despite last access failure, got %v", err)
	}
	if session.Token == "" {
		t.Fatalf("expected token")
	}
	if repo.touchCalls != 1 {
		t.Fatalf("expected one last access attempt, got %d", repo.touchCalls)
	}
}

func TestAuthServiceLogin_StoreFailure(t *testing.T) {
	repo := newStubUserRepo()
	repo.getByEmailErr = errors.New("connection refused")
	svc, _ := newTestAuthService(repo)

	_, err := svc.Login(context.Background(), "ana@x.com", "secret1")
	var sErr *StoreError
	if !errors.As(err, &sErr) {
		t.Fatalf("expected StoreError, got %v", err)
	}
	if errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("store failure must not look like bad credentials")
	}
}

func TestAuthServiceAuthenticate(t *testing.T) {
	repo := newStubUserRepo()
	svc, tokens := newTestAuthService(repo)
	session := register(t, svc, "Ana", "ana@x.com", "secret1")

	user, err := svc.Authenticate(context.Background(), session.Token)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if user.Email != "ana@x.com" {
		t.Fatalf("unexpected user %+v", user)
	}

	if _, err := svc.Authenticate(context.Background(), "garbage"); !errors.Is(err, ErrJWTInvalid) {
		t.Fatalf("expected ErrJWTInvalid, got %v", err)
	}

	tokens.now = func() time.Time { return time.Now().UTC().Add(-48 * time.Hour) }
	expired, _, err := tokens.Issue(session.User.ID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	tokens.now = func() time.Time { return time.Now().UTC() }
	if _, err := svc.Authenticate(context.Background(), expired); !errors.Is(err, ErrJWTExpired) {
		t.Fatalf("expected ErrJWTExpired, got %v", err)
	}
}

func TestAuthServiceAuthenticate_UserGone(t *testing.T) {
	repo := newStubUserRepo()
	svc, _ := newTestAuthService(repo)
	session := register(t, svc, "Ana", "ana@x.com", "secret1")

	if err := repo.Delete(context.Background(), session.User.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Authenticate(context.Background(), session.Token); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}

	repo.getByIDErr = errors.New("connection refused")
	var sErr *StoreError
	if _, err := svc.Authenticate(context.Background(), session.Token); !errors.As(err, &sErr) {
		t.Fatalf("expected StoreError, got %v", err)
	}
}
