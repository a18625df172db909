// Package vonage wraps the Vonage Messages API for WhatsApp delivery in CopilotRelay.
package vonage

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/BTreeMap/CopilotRelay/internal/util"
	"github.com/golang-jwt/jwt/v5"
)

// jtiEntropyHexLength is 128 bits of randomness rendered as hex.
const jtiEntropyHexLength = 32

var (
	// ErrEmptyApplicationID is returned when no Vonage application id is configured.
	ErrEmptyApplicationID = errors.New("vonage application id must be provided")
	// ErrNilPrivateKey is returned when the issuer has no signing key.
	ErrNilPrivateKey = errors.New("vonage private key must be provided")
)

// TokenIssuer mints the short-lived RS256 assertion Vonage expects on every API call.
// Tokens are never cached; Vonage enforces its own TTL.
type TokenIssuer struct {
	applicationID string
	privateKey    *rsa.PrivateKey
	now           func() time.Time
}

// NewTokenIssuer creates a TokenIssuer for the given application.
func NewTokenIssuer(applicationID string, privateKey *rsa.PrivateKey) (*TokenIssuer, error) {
	if applicationID == "" {
		return nil, ErrEmptyApplicationID
	}
	if privateKey == nil {
		return nil, ErrNilPrivateKey
	}
	return &TokenIssuer{applicationID: applicationID, privateKey: privateKey, now: time.Now}, nil
}

// Issue signs a fresh token with claims iat, jti and application_id.
func (t *TokenIssuer) Issue() (string, error) {
	issuedAt := t.now().Unix()
	claims := jwt.MapClaims{
		"iat":            issuedAt,
		"jti":            util.GenerateRandomID(strconv.FormatInt(issuedAt, 10)+"-", jtiEntropyHexLength),
		"application_id": t.applicationID,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(t.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign vonage token: %w", err)
	}
	return signed, nil
}

// ParsePrivateKey parses a PEM encoded RSA key in PKCS#1 or PKCS#8 form.
func ParsePrivateKey(pemData []byte) (*rsa.PrivateKey, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM(pemData)
	if err != nil {
		return nil, fmt.Errorf("failed to parse vonage private key: %w", err)
	}
	return key, nil
}

// LoadPrivateKey reads and parses the PEM signing key at path.
func LoadPrivateKey(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read vonage private key %s: %w", path, err)
	}
	slog.Debug("LoadPrivateKey: read signing key", "path", path, "bytes", len(data))
	return ParsePrivateKey(data)
}
