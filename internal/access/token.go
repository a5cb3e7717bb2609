package access

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/resume-demo-gate/internal/model"
	"github.com/iliyamo/resume-demo-gate/internal/utils"
)

// TokenIssuer mints and redeems turn tokens.  At most one token exists per
// identity.  It is not safe for concurrent use.
type TokenIssuer struct {
	ttl        time.Duration
	secret     []byte
	byID       map[string]*model.TurnToken // jti -> token
	byIdentity map[string]string           // identity -> jti
	lapsed     map[string]time.Time        // jti of expired tokens -> expiry
}

// NewTokenIssuer returns an issuer signing token values with secret.
func NewTokenIssuer(secret []byte, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{
		ttl:        ttl,
		secret:     secret,
		byID:       make(map[string]*model.TurnToken),
		byIdentity: make(map[string]string),
		lapsed:     make(map[string]time.Time),
	}
}

// Issue mints a token for identity, replacing any unconsumed one.
func (t *TokenIssuer) Issue(identity string, now time.Time) (model.TurnToken, error) {
	t.Revoke(identity)
	tok := &model.TurnToken{
		ID:        uuid.NewString(),
		Identity:  identity,
		ExpiresAt: now.Add(t.ttl),
	}
	value, err := utils.NewTurnToken(t.secret, tok.ID, identity, now, tok.ExpiresAt)
	if err != nil {
		return model.TurnToken{}, err
	}
	tok.Value = value
	t.byID[tok.ID] = tok
	t.byIdentity[identity] = tok.ID
	return *tok, nil
}

// Peek resolves a token value without consuming it.
func (t *TokenIssuer) Peek(value string, now time.Time) (model.TurnToken, Result) {
	jti, _, err := utils.ParseTurnToken(t.secret, value)
	if err != nil {
		return model.TurnToken{}, fail(KindNotFound, "unknown turn token")
	}
	tok, found := t.byID[jti]
	if !found || tok.Value != value {
		if _, wasLapsed := t.lapsed[jti]; wasLapsed {
			return model.TurnToken{}, fail(KindExpired, "turn token expired")
		}
		return model.TurnToken{}, fail(KindNotFound, "unknown turn token")
	}
	if !now.Before(tok.ExpiresAt) {
		return *tok, fail(KindExpired, "turn token expired")
	}
	return *tok, ok("turn token valid")
}

// Redeem consumes a token and returns the identity it was addressed to.
func (t *TokenIssuer) Redeem(value string, now time.Time) (string, Result) {
	tok, res := t.Peek(value, now)
	if !res.OK {
		if res.Kind == KindExpired && tok.ID != "" {
			t.expireOne(tok.ID, tok.ExpiresAt)
		}
		return "", res
	}
	t.remove(tok.ID)
	return tok.Identity, ok("turn token redeemed")
}

// Revoke deletes the outstanding token of identity, if any.
func (t *TokenIssuer) Revoke(identity string) {
	if jti, ok := t.byIdentity[identity]; ok {
		t.remove(jti)
	}
}

// Outstanding reports whether identity holds an unexpired token at now.
func (t *TokenIssuer) Outstanding(identity string, now time.Time) bool {
	jti, ok := t.byIdentity[identity]
	if !ok {
		return false
	}
	return now.Before(t.byID[jti].ExpiresAt)
}

// Expire removes tokens whose validity window closed at or before now and
// returns them ordered by expiry.  Tombstones older than one window are
// forgotten.
func (t *TokenIssuer) Expire(now time.Time) []model.TurnToken {
	var out []model.TurnToken
	for jti, tok := range t.byID {
		if !now.Before(tok.ExpiresAt) {
			out = append(out, *tok)
			t.expireOne(jti, tok.ExpiresAt)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	for jti, at := range t.lapsed {
		if now.Sub(at) >= t.ttl {
			delete(t.lapsed, jti)
		}
	}
	return out
}

// Clear drops every token and tombstone.
func (t *TokenIssuer) Clear() {
	clear(t.byID)
	clear(t.byIdentity)
	clear(t.lapsed)
}

func (t *TokenIssuer) expireOne(jti string, at time.Time) {
	t.remove(jti)
	t.lapsed[jti] = at
}

func (t *TokenIssuer) remove(jti string) {
	tok, ok := t.byID[jti]
	if !ok {
		return
	}
	delete(t.byID, jti)
	if t.byIdentity[tok.Identity] == jti {
		delete(t.byIdentity, tok.Identity)
	}
}
