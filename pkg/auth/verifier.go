package auth

import (
	"errors"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMissingToken is returned when no bearer token was supplied at all.
	ErrMissingToken = errors.New("auth: missing token")
	// ErrInvalidToken covers bad signatures, expiry and malformed tokens.
	ErrInvalidToken = errors.New("auth: invalid token")
	// ErrInvalidSubject is returned when the token verified but carries no
	// usable positive numeric user id.
	ErrInvalidSubject = errors.New("auth: invalid subject")
)

// TokenVerifier authenticates a bearer token and resolves it to a user id.
// Token issuance lives outside this service; this side only verifies.
type TokenVerifier interface {
	Verify(token string) (int64, error)
}

// Claims defines the JWT claims structure shared with the token issuer.
type Claims struct {
	UserID int64 `json:"userId,omitempty"`
	jwt.RegisteredClaims
}

// JWTVerifier verifies HMAC-signed JWTs.
type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

var _ TokenVerifier = (*JWTVerifier)(nil)

func (v *JWTVerifier) Verify(tokenString string) (int64, error) {
	if tokenString == "" {
		return 0, ErrMissingToken
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return 0, errors.Join(ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return 0, ErrInvalidToken
	}

	userID := claims.UserID
	if userID == 0 && claims.Subject != "" {
		// Issuers using the standard "sub" claim instead of "userId".
		userID, _ = strconv.ParseInt(claims.Subject, 10, 64)
	}
	if userID <= 0 {
		return 0, ErrInvalidSubject
	}
	return userID, nil
}
