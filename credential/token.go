package credential

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"sync"
)

// Claims are the facts asserted by an access token issued for a data flow.
type Claims struct {
	// ID is the unique token ID. Issuers return the same token when asked to
	// issue a token with an ID they have already issued.
	ID string `json:"jti"`

	ProcessID     string `json:"process_id"`
	AgreementID   string `json:"agreement_id"`
	AssetID       string `json:"asset_id"`
	FlowType      string `json:"flow_type"`
	ParticipantID string `json:"participant_id"`
}

// Issuer produces opaque bearer credentials.
type Issuer interface {
	IssueAccessToken(ctx context.Context, c Claims) (string, error)
}

// Revoker invalidates previously issued credentials.
type Revoker interface {
	RevokeAccessToken(ctx context.Context, id string) error
}

// OpaqueIssuer is an in-memory Issuer and Revoker that produces random
// tokens.
type OpaqueIssuer struct {
	m      sync.RWMutex
	byID   map[string]string
	claims map[string]Claims
}

var (
	_ Issuer  = (*OpaqueIssuer)(nil)
	_ Revoker = (*OpaqueIssuer)(nil)
)

// IssueAccessToken returns a token asserting c.
func (i *OpaqueIssuer) IssueAccessToken(_ context.Context, c Claims) (string, error) {
	i.m.Lock()
	defer i.m.Unlock()

	if t, ok := i.byID[c.ID]; ok {
		return t, nil
	}

	var buf [32]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}

	t := base64.RawURLEncoding.EncodeToString(buf[:])

	if i.byID == nil {
		i.byID = map[string]string{}
		i.claims = map[string]Claims{}
	}

	i.byID[c.ID] = t
	i.claims[t] = c

	return t, nil
}

// RevokeAccessToken invalidates the token with the given ID. It is not an
// error to revoke a token that does not exist.
func (i *OpaqueIssuer) RevokeAccessToken(_ context.Context, id string) error {
	i.m.Lock()
	defer i.m.Unlock()

	if t, ok := i.byID[id]; ok {
		delete(i.byID, id)
		delete(i.claims, t)
	}

	return nil
}

// Verify returns the claims asserted by token t, if it is valid.
func (i *OpaqueIssuer) Verify(t string) (Claims, bool) {
	i.m.RLock()
	defer i.m.RUnlock()

	c, ok := i.claims[t]
	return c, ok
}
