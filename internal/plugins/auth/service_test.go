package auth

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/lumehaven/signet/internal/apperror"
)

// --- Mock Code Store ---

// mockCodeStore implements CodeStore for testing.
type mockCodeStore struct {
	putIfAbsentFn func(ctx context.Context, phone, code string, ttl time.Duration) (bool, error)
	consumeFn     func(ctx context.Context, phone, code string) (bool, error)
	// Capture fields for assertions.
	lastPhone string
	lastCode  string
	lastTTL   time.Duration
}

func (m *mockCodeStore) PutIfAbsent(ctx context.Context, phone, code string, ttl time.Duration) (bool, error) {
	m.lastPhone = phone
	m.lastCode = code
	m.lastTTL = ttl
	if m.putIfAbsentFn != nil {
		return m.putIfAbsentFn(ctx, phone, code, ttl)
	}
	return true, nil
}

func (m *mockCodeStore) Consume(ctx context.Context, phone, code string) (bool, error) {
	m.lastPhone = phone
	m.lastCode = code
	if m.consumeFn != nil {
		return m.consumeFn(ctx, phone, code)
	}
	return false, nil
}

// --- Mock Identity Resolver ---

// mockIdentityResolver implements IdentityResolver for testing.
type mockIdentityResolver struct {
	upsertByPhoneFn func(ctx context.Context, phone string) (*User, error)
	upsertByEmailFn func(ctx context.Context, profile Profile) (*User, error)
}

func (m *mockIdentityResolver) UpsertByPhone(ctx context.Context, phone string) (*User, error) {
	if m.upsertByPhoneFn != nil {
		return m.upsertByPhoneFn(ctx, phone)
	}
	return &User{ID: 1, Phone: &phone, Role: RoleUser}, nil
}

func (m *mockIdentityResolver) UpsertByEmail(ctx context.Context, profile Profile) (*User, error) {
	if m.upsertByEmailFn != nil {
		return m.upsertByEmailFn(ctx, profile)
	}
	return &User{ID: 1, Role: RoleUser}, nil
}

// --- Mock User Repository ---

// mockUserRepo implements UserRepository for testing.
type mockUserRepo struct {
	findByIDFn               func(ctx context.Context, id int64) (*User, error)
	findByPhoneFn            func(ctx context.Context, phone string) (*User, error)
	findByEmailFn            func(ctx context.Context, email string) (*User, error)
	createOrTouchByPhoneFn   func(ctx context.Context, phone, displayName string, now time.Time) error
	createOrRefreshByEmailFn func(ctx context.Context, email, displayName string, avatarPath *string, now time.Time) error
}

func (m *mockUserRepo) FindByID(ctx context.Context, id int64) (*User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, apperror.NewNotFound("user not found")
}

func (m *mockUserRepo) FindByPhone(ctx context.Context, phone string) (*User, error) {
	if m.findByPhoneFn != nil {
		return m.findByPhoneFn(ctx, phone)
	}
	return nil, apperror.NewNotFound("user not found")
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*User, error) {
	if m.findByEmailFn != nil {
		return m.findByEmailFn(ctx, email)
	}
	return nil, apperror.NewNotFound("user not found")
}

func (m *mockUserRepo) CreateOrTouchByPhone(ctx context.Context, phone, displayName string, now time.Time) error {
	if m.createOrTouchByPhoneFn != nil {
		return m.createOrTouchByPhoneFn(ctx, phone, displayName, now)
	}
	return nil
}

func (m *mockUserRepo) CreateOrRefreshByEmail(ctx context.Context, email, displayName string, avatarPath *string, now time.Time) error {
	if m.createOrRefreshByEmailFn != nil {
		return m.createOrRefreshByEmailFn(ctx, email, displayName, avatarPath, now)
	}
	return nil
}

// --- Mock Code Sender ---

// mockCodeSender implements CodeSender for testing.
type mockCodeSender struct {
	sendCodeFn func(ctx context.Context, phone, code string) error
	// Capture fields for assertions.
	lastPhone string
	lastCode  string
	sendCount int
}

func (m *mockCodeSender) SendCode(ctx context.Context, phone, code string) error {
	m.lastPhone = phone
	m.lastCode = code
	m.sendCount++
	if m.sendCodeFn != nil {
		return m.sendCodeFn(ctx, phone, code)
	}
	return nil
}

// --- Test Helpers ---

// fixedNow is the deterministic clock shared by time-sensitive tests.
var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// newTestAuthService creates an authService with the given mocks. Any nil
// mock gets a zero-value default.
func newTestAuthService(codes *mockCodeStore, identity *mockIdentityResolver, users *mockUserRepo, sender CodeSender) *authService {
	if codes == nil {
		codes = &mockCodeStore{}
	}
	if identity == nil {
		identity = &mockIdentityResolver{}
	}
	if users == nil {
		users = &mockUserRepo{}
	}
	return &authService{
		codes:    codes,
		identity: identity,
		users:    users,
		minter:   NewTokenMinter("test-secret-key-for-unit-tests-only!!!!!", time.Hour),
		sender:   sender,
		phoneRe:  regexp.MustCompile(`^1[3-9]\d{9}$`),
		codeTTL:  5 * time.Minute,
	}
}

// assertAppError checks that err is an *apperror.AppError with the expected code.
func assertAppError(t *testing.T, err error, expectedCode int) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %d, got nil", expectedCode)
	}
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *apperror.AppError, got %T: %v", err, err)
	}
	if appErr.Code != expectedCode {
		t.Errorf("expected status %d, got %d (message: %s)", expectedCode, appErr.Code, appErr.Message)
	}
}

// assertAppErrorType checks the machine-readable classifier as well.
func assertAppErrorType(t *testing.T, err error, expectedType string) {
	t.Helper()
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *apperror.AppError, got %T: %v", err, err)
	}
	if appErr.Type != expectedType {
		t.Errorf("expected error type %q, got %q", expectedType, appErr.Type)
	}
}

// codeFormat matches a well-formed 6-digit code (no leading zero).
var codeFormat = regexp.MustCompile(`^[1-9]\d{5}$`)

// --- RequestCode Tests ---

func TestRequestCode_Success(t *testing.T) {
	codes := &mockCodeStore{}
	sender := &mockCodeSender{}

	svc := newTestAuthService(codes, nil, nil, sender)
	code, err := svc.RequestCode(context.Background(), "13812340000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !codeFormat.MatchString(code) {
		t.Errorf("expected 6-digit code, got %q", code)
	}

	// The stored code and the dispatched code must be the same one.
	if codes.lastCode != code {
		t.Errorf("stored code %q differs from returned code %q", codes.lastCode, code)
	}
	if codes.lastTTL != 5*time.Minute {
		t.Errorf("expected 5m TTL, got %v", codes.lastTTL)
	}
	if sender.sendCount != 1 {
		t.Errorf("expected 1 dispatch, got %d", sender.sendCount)
	}
	if sender.lastCode != code {
		t.Errorf("dispatched code %q differs from returned code %q", sender.lastCode, code)
	}
}

func TestRequestCode_InvalidPhone(t *testing.T) {
	tests := []struct {
		name  string
		phone string
	}{
		{"empty", ""},
		{"too short", "1381234"},
		{"too long", "138123400001"},
		{"wrong prefix", "23812340000"},
		{"second digit out of range", "12812340000"},
		{"letters", "13812abc000"},
	}

	codes := &mockCodeStore{
		putIfAbsentFn: func(ctx context.Context, phone, code string, ttl time.Duration) (bool, error) {
			t.Error("store must not be touched for an invalid phone")
			return false, nil
		},
	}
	svc := newTestAuthService(codes, nil, nil, nil)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.RequestCode(context.Background(), tt.phone)
			assertAppError(t, err, 422)
			assertAppErrorType(t, err, "invalid_phone_format")
		})
	}
}

func TestRequestCode_AlreadyPending(t *testing.T) {
	codes := &mockCodeStore{
		putIfAbsentFn: func(ctx context.Context, phone, code string, ttl time.Duration) (bool, error) {
			return false, nil
		},
	}
	sender := &mockCodeSender{}

	svc := newTestAuthService(codes, nil, nil, sender)
	_, err := svc.RequestCode(context.Background(), "13812340000")
	assertAppError(t, err, 429)
	assertAppErrorType(t, err, "code_pending")

	// A refused issue must not dispatch anything.
	if sender.sendCount != 0 {
		t.Errorf("expected no dispatch, got %d", sender.sendCount)
	}
}

func TestRequestCode_StoreError(t *testing.T) {
	codes := &mockCodeStore{
		putIfAbsentFn: func(ctx context.Context, phone, code string, ttl time.Duration) (bool, error) {
			return false, errors.New("redis connection lost")
		},
	}

	svc := newTestAuthService(codes, nil, nil, nil)
	_, err := svc.RequestCode(context.Background(), "13812340000")
	assertAppError(t, err, 500)
}

func TestRequestCode_SenderFailureStillSucceeds(t *testing.T) {
	sender := &mockCodeSender{
		sendCodeFn: func(ctx context.Context, phone, code string) error {
			return errors.New("gateway timeout")
		},
	}

	svc := newTestAuthService(nil, nil, nil, sender)
	code, err := svc.RequestCode(context.Background(), "13812340000")
	if err != nil {
		t.Fatalf("expected success despite sender failure, got: %v", err)
	}
	if code == "" {
		t.Error("expected code to be returned")
	}
}

func TestRequestCode_NilSender(t *testing.T) {
	svc := newTestAuthService(nil, nil, nil, nil)
	code, err := svc.RequestCode(context.Background(), "13812340000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !codeFormat.MatchString(code) {
		t.Errorf("expected 6-digit code, got %q", code)
	}
}

// --- VerifyCode Tests ---

func TestVerifyCode_Success(t *testing.T) {
	phone := "13812340000"
	codes := &mockCodeStore{
		consumeFn: func(ctx context.Context, p, code string) (bool, error) {
			if p != phone {
				t.Errorf("expected phone %s, got %s", phone, p)
			}
			if code != "654321" {
				t.Errorf("expected code 654321, got %s", code)
			}
			return true, nil
		},
	}
	identity := &mockIdentityResolver{
		upsertByPhoneFn: func(ctx context.Context, p string) (*User, error) {
			return &User{ID: 42, Phone: &p, DisplayName: "138****0000", Role: RoleUser}, nil
		},
	}

	svc := newTestAuthService(codes, identity, nil, nil)
	token, user, err := svc.VerifyCode(context.Background(), phone, "654321")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token == "" {
		t.Fatal("expected session token")
	}
	if user == nil || user.ID != 42 {
		t.Fatalf("expected user 42, got %+v", user)
	}

	// The minted token must verify and carry the principal's claims.
	claims, err := svc.VerifyToken(token)
	if err != nil {
		t.Fatalf("minted token failed verification: %v", err)
	}
	id, err := claims.UserID()
	if err != nil {
		t.Fatalf("parsing subject: %v", err)
	}
	if id != 42 {
		t.Errorf("expected subject 42, got %d", id)
	}
	if claims.Phone != phone {
		t.Errorf("expected phone claim %s, got %s", phone, claims.Phone)
	}
	if claims.Role != RoleUser {
		t.Errorf("expected role %s, got %s", RoleUser, claims.Role)
	}
}

func TestVerifyCode_InvalidPhone(t *testing.T) {
	svc := newTestAuthService(nil, nil, nil, nil)
	_, _, err := svc.VerifyCode(context.Background(), "not-a-phone", "123456")
	assertAppError(t, err, 422)
}

func TestVerifyCode_WrongCode(t *testing.T) {
	codes := &mockCodeStore{
		consumeFn: func(ctx context.Context, phone, code string) (bool, error) {
			return false, nil
		},
	}
	identity := &mockIdentityResolver{
		upsertByPhoneFn: func(ctx context.Context, phone string) (*User, error) {
			t.Error("no principal may be created for a failed verification")
			return nil, nil
		},
	}

	svc := newTestAuthService(codes, identity, nil, nil)
	_, _, err := svc.VerifyCode(context.Background(), "13812340000", "000000")
	assertAppError(t, err, 401)
	assertAppErrorType(t, err, "code_invalid")
}

func TestVerifyCode_StoreError(t *testing.T) {
	codes := &mockCodeStore{
		consumeFn: func(ctx context.Context, phone, code string) (bool, error) {
			return false, errors.New("redis connection lost")
		},
	}

	svc := newTestAuthService(codes, nil, nil, nil)
	_, _, err := svc.VerifyCode(context.Background(), "13812340000", "123456")
	assertAppError(t, err, 500)
}

func TestVerifyCode_IdentityStoreFailure(t *testing.T) {
	codes := &mockCodeStore{
		consumeFn: func(ctx context.Context, phone, code string) (bool, error) {
			return true, nil
		},
	}
	identity := &mockIdentityResolver{
		upsertByPhoneFn: func(ctx context.Context, phone string) (*User, error) {
			return nil, apperror.NewIdentityStoreFailure(errors.New("db write error"))
		},
	}

	svc := newTestAuthService(codes, identity, nil, nil)
	_, _, err := svc.VerifyCode(context.Background(), "13812340000", "123456")
	assertAppError(t, err, 500)
	assertAppErrorType(t, err, "identity_store_failure")
}

// --- GetUser Tests ---

func TestGetUser_Found(t *testing.T) {
	users := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id int64) (*User, error) {
			if id != 7 {
				t.Errorf("expected id 7, got %d", id)
			}
			return &User{ID: 7, DisplayName: "Alice", Role: RoleUser}, nil
		},
	}

	svc := newTestAuthService(nil, nil, users, nil)
	user, err := svc.GetUser(context.Background(), 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.DisplayName != "Alice" {
		t.Errorf("expected Alice, got %s", user.DisplayName)
	}
}

func TestGetUser_NotFound(t *testing.T) {
	svc := newTestAuthService(nil, nil, &mockUserRepo{}, nil)
	_, err := svc.GetUser(context.Background(), 999)
	assertAppError(t, err, 404)
}

// --- Code Generation Tests ---

func TestGenerateCode_Format(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := generateCode()
		if err != nil {
			t.Fatalf("generateCode failed: %v", err)
		}
		if !codeFormat.MatchString(code) {
			t.Fatalf("expected 6-digit code without leading zero, got %q", code)
		}
	}
}

func TestGenerateCode_NotConstant(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code, err := generateCode()
		if err != nil {
			t.Fatalf("generateCode failed: %v", err)
		}
		seen[code] = true
	}
	// 50 draws over 900000 values collapsing to one would mean a broken RNG.
	if len(seen) < 2 {
		t.Error("expected varied codes across draws")
	}
}
