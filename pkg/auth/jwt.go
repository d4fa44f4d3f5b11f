package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/medicab/scheduler/internal/config"
)

var (
	ErrTokenExpired = errors.New("token has expired")
	ErrTokenInvalid = errors.New("token is invalid")
)

// Claims is the verified identity the external identity service encodes
// into an access token. PatientID/DoctorID carry the caller's actor id
// when the role warrants one.
type Claims struct {
	UserID    uuid.UUID
	Role      string
	PatientID *int64
	DoctorID  *int64
}

type schedulerClaims struct {
	jwt.RegisteredClaims
	Role      string `json:"role"`
	PatientID *int64 `json:"patient_id,omitempty"`
	DoctorID  *int64 `json:"doctor_id,omitempty"`
}

// JWTManager validates access tokens issued by the identity service with
// the shared HS256 secret. It can also mint tokens, which the service
// itself only uses in tests.
type JWTManager struct {
	cfg config.JWTConfig
}

func NewJWTManager(cfg config.JWTConfig) *JWTManager {
	return &JWTManager{cfg: cfg}
}

func (m *JWTManager) GenerateToken(claims *Claims) (string, error) {
	now := time.Now()
	jwtClaims := schedulerClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.cfg.Issuer,
			Subject:   claims.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.cfg.AccessTokenTTL)),
			NotBefore: jwt.NewNumericDate(now.Add(-10 * time.Second)),
		},
		Role:      claims.Role,
		PatientID: claims.PatientID,
		DoctorID:  claims.DoctorID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtClaims)
	return token.SignedString([]byte(m.cfg.Secret))
}

func (m *JWTManager) ValidateAccessToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&schedulerClaims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(m.cfg.Secret), nil
		},
		jwt.WithIssuer(m.cfg.Issuer),
		jwt.WithExpirationRequired(),
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*schedulerClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, ErrTokenInvalid
	}

	return &Claims{
		UserID:    userID,
		Role:      claims.Role,
		PatientID: claims.PatientID,
		DoctorID:  claims.DoctorID,
	}, nil
}
