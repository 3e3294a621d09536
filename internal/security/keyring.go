// Package security derives signing keys from the service secret and signs
// identity assertions and invitation respond links.
package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/hkdf"
)

const (
	minSecretLength = 32
	keySalt         = "personal-calendar"
	identityInfo    = "identity-assertion-v1"
	invitationInfo  = "invitation-token-v1"

	// DefaultInvitationTTL is how long a respond link stays valid.
	DefaultInvitationTTL = 30 * 24 * time.Hour
)

// ErrWeakSecret is returned when the configured secret is too short.
var ErrWeakSecret = fmt.Errorf("security: secret must be at least %d bytes", minSecretLength)

// Keyring holds the purpose-bound keys derived from one secret.
type Keyring struct {
	identityKey   []byte
	invitationKey []byte
	invitationTTL time.Duration
	now           func() time.Time
}

// NewKeyring derives the identity and invitation keys from secret with HKDF-SHA256.
func NewKeyring(secret []byte, invitationTTL time.Duration) (*Keyring, error) {
	if len(secret) < minSecretLength {
		return nil, ErrWeakSecret
	}
	if invitationTTL <= 0 {
		invitationTTL = DefaultInvitationTTL
	}
	identityKey, err := deriveKey(secret, identityInfo)
	if err != nil {
		return nil, err
	}
	invitationKey, err := deriveKey(secret, invitationInfo)
	if err != nil {
		return nil, err
	}
	return &Keyring{
		identityKey:   identityKey,
		invitationKey: invitationKey,
		invitationTTL: invitationTTL,
		now:           time.Now,
	}, nil
}

func deriveKey(secret []byte, info string) ([]byte, error) {
	key := make([]byte, sha256.Size)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, []byte(keySalt), []byte(info)), key); err != nil {
		return nil, fmt.Errorf("derive %s key: %w", info, err)
	}
	return key, nil
}

// SignIdentity returns the hex HMAC an upstream identity layer attaches to
// the asserted user headers.
func (k *Keyring) SignIdentity(userID, email, name string) string {
	return hex.EncodeToString(k.mac(k.identityKey, userID, email, name))
}

// VerifyIdentity checks signature against the asserted identity in constant time.
func (k *Keyring) VerifyIdentity(userID, email, name, signature string) bool {
	given, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}
	return hmac.Equal(given, k.mac(k.identityKey, userID, email, name))
}

// SignInvitation implements application.InvitationTokens. Tokens have the
// form <expiry-unix>.<base64url mac>.
func (k *Keyring) SignInvitation(eventID, email string) string {
	expires := strconv.FormatInt(k.now().Add(k.invitationTTL).Unix(), 10)
	mac := k.mac(k.invitationKey, eventID, strings.ToLower(email), expires)
	return expires + "." + base64.RawURLEncoding.EncodeToString(mac)
}

// VerifyInvitation implements application.InvitationTokens.
func (k *Keyring) VerifyInvitation(eventID, email, token string) bool {
	return k.checkInvitation(eventID, email, token) == nil
}

var (
	errMalformedToken = errors.New("security: malformed invitation token")
	errExpiredToken   = errors.New("security: invitation token expired")
	errBadSignature   = errors.New("security: invitation token signature mismatch")
)

func (k *Keyring) checkInvitation(eventID, email, token string) error {
	expires, encoded, ok := strings.Cut(token, ".")
	if !ok {
		return errMalformedToken
	}
	unix, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return errMalformedToken
	}
	given, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return errMalformedToken
	}
	if !hmac.Equal(given, k.mac(k.invitationKey, eventID, strings.ToLower(email), expires)) {
		return errBadSignature
	}
	if !k.now().Before(time.Unix(unix, 0)) {
		return errExpiredToken
	}
	return nil
}

// mac joins parts with NUL separators so field boundaries cannot shift.
func (k *Keyring) mac(key []byte, parts ...string) []byte {
	h := hmac.New(sha256.New, key)
	for i, part := range parts {
		if i > 0 {
			h.Write([]byte{0})
		}
		h.Write([]byte(part))
	}
	return h.Sum(nil)
}
