package broker

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dmitrijs2005/fileferry/internal/common"
)

// Claims carries the registered claims plus the approval reference the
// session was minted for. The jti keys the stored session record.
type Claims struct {
	jwt.RegisteredClaims
	ApprovalReference string `json:"approval_reference"`
}

// GenerateToken mints the signed session token. Expiry is baked into the
// token itself in addition to the store TTL, so even a stale store cannot
// stretch the authorization window.
func GenerateToken(id, subject, approvalRef string, secretKey []byte, validity time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validity)),
		},
		ApprovalReference: approvalRef,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ParseToken validates the signature and expiry of a session token and
// returns its claims. Expired tokens map to common.ErrSessionExpired, any
// other defect to common.ErrSessionNotFound.
func ParseToken(tokenString string, secretKey []byte) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrSessionExpired
		}
		return nil, fmt.Errorf("%w: %w", common.ErrSessionNotFound, err)
	}

	if !token.Valid {
		return nil, common.ErrSessionNotFound
	}

	return claims, nil
}
