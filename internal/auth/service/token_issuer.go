package service

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/AlibekovAA/devicehub/internal/common/clock"
	commoncrypto "github.com/AlibekovAA/devicehub/internal/common/crypto"
	"github.com/AlibekovAA/devicehub/internal/common/jwtverify"
	userdomain "github.com/AlibekovAA/devicehub/internal/user/domain"
)

type TokenIssuer struct {
	jwtSecret      []byte
	idGenerator    commoncrypto.IDGenerator
	clock          clock.Clock
	accessTokenTTL time.Duration
}

func NewTokenIssuer(
	jwtSecret string,
	idGenerator commoncrypto.IDGenerator,
	accessTokenTTL time.Duration,
	clock clock.Clock,
) *TokenIssuer {
	return &TokenIssuer{
		jwtSecret:      []byte(jwtSecret),
		idGenerator:    idGenerator,
		clock:          clock,
		accessTokenTTL: accessTokenTTL,
	}
}

// IssueAccessToken signs an HS256 token carrying the user's role in the
// roles claim.
func (ti *TokenIssuer) IssueAccessToken(user userdomain.User) (string, error) {
	jti, err := ti.idGenerator.NewID()
	if err != nil {
		return "", err
	}

	role := user.Role
	if role == "" {
		role = userdomain.RoleUser
	}

	now := ti.clock.Now()
	claims := jwt.MapClaims{
		"sub":   string(user.ID),
		"usr":   user.Name,
		"roles": []string{string(role)},
		"jti":   jti,
		"exp":   now.Add(ti.accessTokenTTL).Unix(),
		"iat":   now.Unix(),
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := t.SignedString(ti.jwtSecret)
	if err != nil {
		return "", err
	}

	incrementAccessTokensIssued()
	return tokenString, nil
}

func (ti *TokenIssuer) ParseToken(tokenString string) (jwtverify.Claims, error) {
	return jwtverify.ParseToken(tokenString, ti.jwtSecret)
}
