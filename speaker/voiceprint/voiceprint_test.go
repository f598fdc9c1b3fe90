package voiceprint

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbukum/meetingflow/errors"
	"github.com/kbukum/meetingflow/keyquota"
	"github.com/kbukum/meetingflow/speaker"
)

func newKeys(ids ...string) *keyquota.Manager {
	creds := make([]keyquota.CredentialConfig, 0, len(ids))
	for _, id := range ids {
		creds = append(creds, keyquota.CredentialConfig{ID: id, Secret: "key-" + id})
	}
	return keyquota.NewManager(keyquota.Config{Providers: map[string][]keyquota.CredentialConfig{ProviderName: creds}})
}

var identities = []speaker.Identity{
	{ID: "u1", Name: "Alice", VoiceprintID: "vp1"},
	{ID: "u2", Name: "Bob", VoiceprintID: "vp2"},
}

func TestSearchRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/voiceprints/search", r.URL.Path)
		assert.Equal(t, "Bearer key-k1", r.Header.Get("Authorization"))
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		var req searchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"vp1", "vp2"}, req.VoiceprintIDs)
		_, _ = w.Write([]byte(`{"matches":[{"voiceprint_id":"vp2","score":0.81},{"voiceprint_id":"vp1","score":0.2},{"voiceprint_id":"stranger","score":0.9}]}`))
	}))
	defer srv.Close()

	s, err := New(Config{BaseURL: srv.URL, InitialBackoff: time.Millisecond}, newKeys("k1"), nil)
	require.NoError(t, err)
	assert.Equal(t, ProviderName, s.Name())

	got, err := s.Execute(context.Background(), speaker.SearchRequest{SampleURL: "https://blobs.test/s.wav", Identities: identities})
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, []speaker.Candidate{
		{Identity: identities[1], Score: 0.81},
		{Identity: identities[0], Score: 0.2},
	}, got)
}

func TestSearchAuthFailureIsTagged(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	keys := newKeys("k1")
	s, err := New(Config{BaseURL: srv.URL, InitialBackoff: time.Millisecond}, keys, nil)
	require.NoError(t, err)

	_, err = s.Execute(context.Background(), speaker.SearchRequest{Identities: identities})
	assert.Equal(t, errors.ErrCodeVoiceprintAuth, errors.CodeOf(err))
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, int64(1), keys.Snapshot(ProviderName)[0].Failures)
}

func TestSearchRotatesPastRateLimitedKey(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		mu.Lock()
		seen = append(seen, auth)
		mu.Unlock()
		if auth == "Bearer key-k1" {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"matches":[{"voiceprint_id":"vp1","score":0.7}]}`))
	}))
	defer srv.Close()

	keys := newKeys("k1", "k2")
	s, err := New(Config{BaseURL: srv.URL, InitialBackoff: time.Millisecond}, keys, nil)
	require.NoError(t, err)

	got, err := s.Execute(context.Background(), speaker.SearchRequest{Identities: identities})
	require.NoError(t, err)
	assert.Equal(t, []speaker.Candidate{{Identity: identities[0], Score: 0.7}}, got)
	mu.Lock()
	assert.Equal(t, []string{"Bearer key-k1", "Bearer key-k2"}, seen)
	mu.Unlock()

	snap := keys.Snapshot(ProviderName)
	require.Len(t, snap, 2)
	assert.Equal(t, keyquota.StateRateLimited, snap[0].State)
	assert.Equal(t, int64(1), snap[1].Successes)
}

func TestSearchPoolExhaustedIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	s, err := New(Config{BaseURL: srv.URL, MaxAttempts: 5, InitialBackoff: time.Millisecond}, newKeys("k1"), nil)
	require.NoError(t, err)

	_, err = s.Execute(context.Background(), speaker.SearchRequest{Identities: identities})
	require.Error(t, err)
	assert.True(t, keyquota.Unavailable(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestSearchWithoutCredentials(t *testing.T) {
	s, err := New(Config{BaseURL: "http://127.0.0.1:1", InitialBackoff: time.Millisecond}, newKeys(), nil)
	require.NoError(t, err)

	_, err = s.Execute(context.Background(), speaker.SearchRequest{Identities: identities})
	assert.True(t, keyquota.Unavailable(err))
	assert.Equal(t, errors.ErrCodeAuth, errors.CodeOf(err))
}
