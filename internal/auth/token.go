package auth

import (
	"alumni_network/internal/models"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gofrs/uuid"
	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

type Claims struct {
	UserID int64       `json:"id"`
	Email  string      `json:"email"`
	Role   models.Role `json:"role"`
	jwt.RegisteredClaims
}

// TokenCodec signs and verifies access tokens with one secret fixed at
// construction.
type TokenCodec struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenCodec(secret, issuer string, ttl time.Duration) (*TokenCodec, error) {
	const op = "auth.NewTokenCodec"

	if secret == "" {
		return nil, fmt.Errorf("%s: empty secret", op)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("%s: non-positive ttl %s", op, ttl)
	}

	return &TokenCodec{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

func (tc *TokenCodec) TTL() time.Duration {
	return tc.ttl
}

func (tc *TokenCodec) Issue(p models.Principal) (string, error) {
	const op = "auth.Issue"

	tokenID, err := uuid.NewV4()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	now := tc.now().UTC()
	claims := &Claims{
		UserID: p.ID,
		Email:  p.Email,
		Role:   p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenID.String(),
			Subject:   strconv.FormatInt(p.ID, 10),
			Issuer:    tc.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tc.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(tc.secret)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return signed, nil
}

// Verify never consults the store: a token issued before deactivation still
// verifies here until it expires.
func (tc *TokenCodec) Verify(tokenStr string) (models.Principal, error) {
	const op = "auth.Verify"

	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return tc.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(tc.issuer),
		jwt.WithTimeFunc(tc.now),
	)
	if err != nil {
		return models.Principal{}, fmt.Errorf("%s: %w: %w", op, ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return models.Principal{}, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	if claims.UserID <= 0 || claims.Subject != strconv.FormatInt(claims.UserID, 10) || !claims.Role.Valid() {
		return models.Principal{}, fmt.Errorf("%s: %w: inconsistent claims", op, ErrInvalidToken)
	}

	return models.Principal{
		ID:    claims.UserID,
		Email: claims.Email,
		Role:  claims.Role,
	}, nil
}
