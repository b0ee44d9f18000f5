package token

import "sync"

// Revocations tracks execution ids whose token has been explicitly
// invalidated (§4.5 step 5: "invalidates the token" when a remote execution
// reaches a terminal status). JWTs are stateless, so Verify alone cannot
// reject a structurally-valid-but-revoked token; callers must additionally
// consult IsRevoked after Verify succeeds.
type Revocations struct {
	mu     sync.Mutex
	byExec map[string]bool
}

// NewRevocations constructs an empty revocation set.
func NewRevocations() *Revocations {
	return &Revocations{byExec: make(map[string]bool)}
}

// Revoke marks executionID's token invalid.
func (r *Revocations) Revoke(executionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byExec[executionID] = true
}

// IsRevoked reports whether executionID's token has been revoked.
func (r *Revocations) IsRevoked(executionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byExec[executionID]
}
