// Package speaker resolves diarization labels ("Speaker A") to known
// identities by matching a short voice sample per label against enrolled
// voiceprints.
package speaker

import (
	"context"

	"github.com/kbukum/meetingflow/provider"
)

// Identity is a person the search can return.
type Identity struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	VoiceprintID string `json:"voiceprint_id"`
}

// Candidate is one ranked search hit.
type Candidate struct {
	Identity Identity `json:"identity"`
	Score    float64  `json:"score"`
}

// SearchRequest asks the identity-search backend to score a sample against
// a closed set of identities.
type SearchRequest struct {
	SampleURL  string
	Identities []Identity
}

// Searcher is the identity-search capability.
type Searcher = provider.RequestResponse[SearchRequest, []Candidate]

// IdentityDirectory lists the identities a tenant's meetings can contain.
type IdentityDirectory interface {
	KnownIdentities(ctx context.Context, tenantID string) ([]Identity, error)
}
