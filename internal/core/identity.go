package core

import "context"

// Identity is the decoded set of caller claims: who they are, their
// role, and the groups they belong to.
type Identity struct {
	UserID string
	Email  string
	Role   string
	Groups []string
}

// IdentityResolver resolves a bearer credential into caller claims.
// Resolution happens per request; nothing is cached across requests, so
// role or group changes take effect on the caller's next call.
type IdentityResolver interface {
	ResolveCallerIdentity(ctx context.Context, credential string) (*Identity, error)
}
