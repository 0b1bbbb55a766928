package accounts

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

// TokenPurpose scopes an action token to a single account operation.
type TokenPurpose string

const (
	// PurposeVerifyEmail tokens activate a freshly registered account
	PurposeVerifyEmail TokenPurpose = "verify_email"
	// PurposeResetPassword tokens authorize a password change
	PurposeResetPassword TokenPurpose = "reset_password"
)

type actionClaims struct {
	jwt.RegisteredClaims
	Purpose     string `json:"pur"`
	Fingerprint string `json:"fpt"`
}

// ActionTokens issues and validates stateless, purpose scoped tokens for
// email verification and password reset links.
//
// Each token is an HS256 JWT signed with a key derived from the base
// signing key and the purpose, and embeds a fingerprint of the mutable user
// fields the token attests to. Validation recomputes the fingerprint from
// the current user record: once verification flips the active flag, or a
// reset replaces the password hash, every outstanding token for that purpose
// stops validating. Single use falls out of the construction, there is no
// revocation store.
type ActionTokens struct {
	signingKey []byte
	issuer     string
	ttl        map[TokenPurpose]time.Duration
	now        func() time.Time
	logger     Logger
}

// NewActionTokens creates the action token service. TTLs bound the issue
// window per purpose.
func NewActionTokens(signingKey []byte, verifyTTL, resetTTL time.Duration, issuer string, logger Logger) *ActionTokens {
	if logger == nil {
		logger = defLogger{}
	}

	return &ActionTokens{
		signingKey: signingKey,
		issuer:     issuer,
		ttl: map[TokenPurpose]time.Duration{
			PurposeVerifyEmail:   verifyTTL,
			PurposeResetPassword: resetTTL,
		},
		now:    time.Now,
		logger: logger,
	}
}

// WithClock overrides the time source, useful for tests
func (s *ActionTokens) WithClock(clock func() time.Time) *ActionTokens {
	if clock != nil {
		s.now = clock
	}
	return s
}

// Issue signs a token for the given purpose bound to the user's current
// state. It has no side effects and stores nothing.
func (s *ActionTokens) Issue(purpose TokenPurpose, user *User) (string, error) {
	if user == nil {
		return "", goerrors.New("user is required to issue a token", goerrors.CategoryBadInput)
	}

	ttl, ok := s.ttl[purpose]
	if !ok {
		return "", goerrors.New("unknown token purpose", goerrors.CategoryBadInput).
			WithMetadata(map[string]any{"purpose": string(purpose)})
	}

	now := s.now()
	claims := &actionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Purpose:     string(purpose),
		Fingerprint: s.fingerprint(purpose, user),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.purposeKey(purpose))
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign action token")
	}

	return signed, nil
}

// Validate recomputes the expected token state from the current user record
// and compares. It fails closed: malformed input, an elapsed window, a
// purpose or subject mismatch, and a stale fingerprint all return false,
// never an error.
func (s *ActionTokens) Validate(purpose TokenPurpose, user *User, tokenString string) bool {
	if user == nil || tokenString == "" {
		return false
	}

	if _, ok := s.ttl[purpose]; !ok {
		return false
	}

	token, err := jwt.ParseWithClaims(tokenString, &actionClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.purposeKey(purpose), nil
	}, jwt.WithTimeFunc(s.now))

	if err != nil || !token.Valid {
		return false
	}

	claims, ok := token.Claims.(*actionClaims)
	if !ok {
		return false
	}

	if claims.Purpose != string(purpose) {
		return false
	}

	if claims.RegisteredClaims.Subject != user.ID.String() {
		return false
	}

	expected := s.fingerprint(purpose, user)
	return hmac.Equal([]byte(claims.Fingerprint), []byte(expected))
}

// purposeKey derives a per purpose signing key so a token minted for one
// operation can never verify for another.
func (s *ActionTokens) purposeKey(purpose TokenPurpose) []byte {
	mac := hmac.New(sha256.New, s.signingKey)
	mac.Write([]byte(purpose))
	return mac.Sum(nil)
}

// fingerprint digests the mutable user fields a purpose attests to. The
// digest must change when the attested fact changes: verification covers the
// verified flag, reset covers the password hash and last login.
func (s *ActionTokens) fingerprint(purpose TokenPurpose, user *User) string {
	mac := hmac.New(sha256.New, s.signingKey)
	mac.Write([]byte(purpose))
	mac.Write([]byte{0})
	mac.Write([]byte(user.ID.String()))
	mac.Write([]byte{0})

	switch purpose {
	case PurposeVerifyEmail:
		mac.Write([]byte(user.Email))
		mac.Write([]byte{0})
		mac.Write([]byte(strconv.FormatBool(user.EmailValidated)))
	case PurposeResetPassword:
		mac.Write([]byte(user.PasswordHash))
		mac.Write([]byte{0})
		if user.LoggedInAt != nil {
			mac.Write([]byte(user.LoggedInAt.UTC().Format(time.RFC3339Nano)))
		}
	}

	return hex.EncodeToString(mac.Sum(nil))
}
