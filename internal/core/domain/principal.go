package domain

type PrincipalKind string

const (
	PrincipalAnonymous    PrincipalKind = "anonymous"
	PrincipalCredentialed PrincipalKind = "credentialed"
)

// Principal is the signed-in identity of a session. A nil *Principal means
// nobody is signed in.
type Principal struct {
	ID    string        `json:"id"`
	Kind  PrincipalKind `json:"kind"`
	Email string        `json:"email,omitempty"`
	Token string        `json:"-"` // session token, usable to resume
}

func (p *Principal) IsAnonymous() bool {
	return p != nil && p.Kind == PrincipalAnonymous
}

func (p *Principal) IsCredentialed() bool {
	return p != nil && p.Kind == PrincipalCredentialed
}
