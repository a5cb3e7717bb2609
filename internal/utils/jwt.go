package utils // package utils provides helpers for signed tokens and one-time codes

import (
    "errors"
    "time"

    "github.com/golang-jwt/jwt/v5" // JWT library for creating and parsing signed tokens
)

// ErrInvalidTurnToken is returned by ParseTurnToken when the value is not a
// turn token signed with the expected secret.
var ErrInvalidTurnToken = errors.New("invalid turn token")

// ErrInvalidAccessToken is returned by ParseAccessToken for tokens whose
// claims are not a plain claim map.
var ErrInvalidAccessToken = errors.New("invalid access token")

// AccessToken represents a signed JWT used on the admin routes along with
// its expiry.
type AccessToken struct {
    Token string    // the serialized JWT string
    Exp   time.Time // the UTC expiration time
}

// NewAccessToken builds and signs an HS256 JWT for an operator.  The JWT
// carries sub, role, exp and iat claims and is checked by the JWTAuth and
// RequireRole middleware.
func NewAccessToken(secret, subject, role string, ttlMin int) (AccessToken, error) {
    now := time.Now().UTC()
    exp := now.Add(time.Duration(ttlMin) * time.Minute)
    claims := jwt.MapClaims{
        "sub":  subject,
        "role": role,
        "exp":  exp.Unix(),
        "iat":  now.Unix(),
    }
    t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
    signed, err := t.SignedString([]byte(secret))
    if err != nil {
        return AccessToken{}, err
    }
    return AccessToken{Token: signed, Exp: exp}, nil
}

// ParseAccessToken verifies an operator JWT and returns its subject and
// role.  Expired tokens are rejected.
func ParseAccessToken(secret, raw string) (subject, role string, err error) {
    tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
        return []byte(secret), nil
    }, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
    if err != nil {
        return "", "", err
    }
    claims, ok := tok.Claims.(jwt.MapClaims)
    if !ok || !tok.Valid {
        return "", "", ErrInvalidAccessToken
    }
    subject, _ = claims["sub"].(string)
    role, _ = claims["role"].(string)
    return subject, role, nil
}

// turnClaims is the claim set of a turn token.  The token value is only an
// envelope: validity and single use are decided by the issuer's in-memory
// record keyed by the jti, so exp is informational.
type turnClaims struct {
    jwt.RegisteredClaims
    Kind string `json:"knd"`
}

const turnKind = "turn"

// NewTurnToken signs a turn token addressed to identity.  jti must be unique
// per token; exp is embedded for clients that want to display the deadline.
func NewTurnToken(secret []byte, jti, identity string, issued, exp time.Time) (string, error) {
    claims := turnClaims{
        RegisteredClaims: jwt.RegisteredClaims{
            ID:        jti,
            Subject:   identity,
            IssuedAt:  jwt.NewNumericDate(issued),
            ExpiresAt: jwt.NewNumericDate(exp),
        },
        Kind: turnKind,
    }
    return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ParseTurnToken verifies the signature of a turn token and returns its jti
// and subject.  Time based claims are not validated here; the caller owns
// the clock.
func ParseTurnToken(secret []byte, value string) (jti, identity string, err error) {
    var claims turnClaims
    tok, err := jwt.ParseWithClaims(value, &claims, func(t *jwt.Token) (interface{}, error) {
        return secret, nil
    }, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithoutClaimsValidation())
    if err != nil || !tok.Valid || claims.Kind != turnKind || claims.ID == "" {
        return "", "", ErrInvalidTurnToken
    }
    return claims.ID, claims.Subject, nil
}
