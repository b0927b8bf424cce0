package security

import (
	"crypto/rsa"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jupiterclapton/relation-service/internal/core/domain"
)

// SessionClaims reprend les claims émis par le service de comptes externe.
// Ce service ne SIGNE jamais de tokens : il ne fait que les vérifier avec
// la clé publique du service de comptes.
type SessionClaims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

type JWTVerifier struct {
	publicKey *rsa.PublicKey
}

// NewJWTVerifier charge la clé publique RSA depuis des bytes PEM.
func NewJWTVerifier(publicKeyPEM []byte) (*JWTVerifier, error) {
	pubKey, err := jwt.ParseRSAPublicKeyFromPEM(publicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}

	return &JWTVerifier{publicKey: pubKey}, nil
}

// Verify vérifie la signature et retourne l'UserID (Subject).
func (j *JWTVerifier) Verify(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		// Sécurité critique : vérifier que l'alg est bien RS256.
		// Empêche les attaques où l'attaquant force l'algo à "None" ou "HS256".
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.publicKey, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrUnauthenticated, err)
	}

	if claims, ok := token.Claims.(*SessionClaims); ok && token.Valid {
		return claims.Subject, nil
	}

	return "", errors.New("invalid token claims")
}
