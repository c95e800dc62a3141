package auth

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"regexp"
	"time"

	"github.com/lumehaven/signet/internal/apperror"
)

// CodeSender dispatches a verification code to its phone. Delivery (SMS
// gateway, queue, ...) is an external collaborator; the service only hands
// the code over. A failed send is logged, not surfaced -- the code stays
// pending and the caller may retry verification or wait out the TTL.
type CodeSender interface {
	SendCode(ctx context.Context, phone, code string) error
}

// AuthService defines the business logic contract for authentication.
// Handlers call these methods -- they never touch the stores directly.
type AuthService interface {
	// RequestCode validates the phone, generates a 6-digit code, installs it
	// unless one is already pending, and hands it to the sender. The code is
	// returned so non-production configurations can expose it.
	RequestCode(ctx context.Context, phone string) (string, error)

	// VerifyCode consumes the pending code (exactly once), upserts the
	// principal, and mints a signed session token for it.
	VerifyCode(ctx context.Context, phone, code string) (string, *User, error)

	// VerifyToken validates a self-issued session token and returns its claims.
	VerifyToken(token string) (*Claims, error)

	// GetUser loads a principal by internal id.
	GetUser(ctx context.Context, id int64) (*User, error)
}

// authService implements AuthService over the Redis code store, the MySQL
// identity resolver, and the token minter.
type authService struct {
	codes    CodeStore
	identity IdentityResolver
	users    UserRepository
	minter   *TokenMinter
	sender   CodeSender
	phoneRe  *regexp.Regexp
	codeTTL  time.Duration
}

// NewAuthService creates a new auth service with the given dependencies.
// sender may be nil, in which case codes are only reachable through the
// non-production expose flag.
func NewAuthService(
	codes CodeStore,
	identity IdentityResolver,
	users UserRepository,
	minter *TokenMinter,
	sender CodeSender,
	phoneRe *regexp.Regexp,
	codeTTL time.Duration,
) AuthService {
	return &authService{
		codes:    codes,
		identity: identity,
		users:    users,
		minter:   minter,
		sender:   sender,
		phoneRe:  phoneRe,
		codeTTL:  codeTTL,
	}
}

func (s *authService) RequestCode(ctx context.Context, phone string) (string, error) {
	if !s.phoneRe.MatchString(phone) {
		return "", apperror.NewInvalidPhone("phone number is not valid")
	}

	code, err := generateCode()
	if err != nil {
		return "", apperror.NewInternal(fmt.Errorf("generating code: %w", err))
	}

	// The conditional insert doubles as the pending-code check: losing the
	// race (or re-requesting inside the TTL) does not extend the window.
	stored, err := s.codes.PutIfAbsent(ctx, phone, code, s.codeTTL)
	if err != nil {
		return "", apperror.NewInternal(err)
	}
	if !stored {
		return "", apperror.NewCodePending("a code was already sent; wait for it to expire before requesting another")
	}

	if s.sender != nil {
		if err := s.sender.SendCode(ctx, phone, code); err != nil {
			slog.Warn("failed to dispatch verification code",
				slog.String("phone", maskPhone(phone)),
				slog.Any("error", err),
			)
		}
	}

	slog.Info("verification code issued",
		slog.String("phone", maskPhone(phone)),
		slog.Duration("ttl", s.codeTTL),
	)

	return code, nil
}

func (s *authService) VerifyCode(ctx context.Context, phone, code string) (string, *User, error) {
	if !s.phoneRe.MatchString(phone) {
		return "", nil, apperror.NewInvalidPhone("phone number is not valid")
	}

	// Compare-and-delete is atomic, so the same code can never verify twice.
	// Absent, expired, and mismatched all collapse into one failure.
	ok, err := s.codes.Consume(ctx, phone, code)
	if err != nil {
		return "", nil, apperror.NewInternal(err)
	}
	if !ok {
		return "", nil, apperror.NewCodeInvalid()
	}

	user, err := s.identity.UpsertByPhone(ctx, phone)
	if err != nil {
		return "", nil, err
	}

	token, err := s.minter.Mint(user)
	if err != nil {
		return "", nil, apperror.NewInternal(err)
	}

	slog.Info("user logged in",
		slog.Int64("user_id", user.ID),
		slog.String("phone", maskPhone(phone)),
	)

	return token, user, nil
}

func (s *authService) VerifyToken(token string) (*Claims, error) {
	return s.minter.Verify(token)
}

func (s *authService) GetUser(ctx context.Context, id int64) (*User, error) {
	return s.users.FindByID(ctx, id)
}

// codeRange spans the valid 6-digit codes: [100000, 999999].
const (
	codeMin  = 100000
	codeSpan = 900000
)

// generateCode draws a uniformly distributed 6-digit code. crypto/rand.Int
// is uniform over [0, codeSpan), so adding the offset covers the closed
// range without truncation bias.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeSpan))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+codeMin), nil
}
