package keyquota

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kbukum/meetingflow/errors"
	"github.com/kbukum/meetingflow/logger"
	"github.com/kbukum/meetingflow/resilience"
)

type credentialRecord struct {
	provider string
	id       string
	secret   string

	state         State
	cooldownUntil time.Time
	breaker       *resilience.CircuitBreaker

	requests  int64
	successes int64
	failures  int64
	lastUsed  time.Time
}

// Manager tracks credential health for every provider. All state lives
// behind one mutex; callers only ever see copies.
type Manager struct {
	cfg Config
	log *logger.Logger
	now func() time.Time

	onUnavailable func(ctx context.Context, provider string, err error)

	mu    sync.Mutex
	pools map[string][]*credentialRecord
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLogger sets the manager logger.
func WithLogger(log *logger.Logger) Option {
	return func(m *Manager) { m.log = log }
}

// WithUnavailableHook is called whenever Acquire finds no usable credential.
func WithUnavailableHook(fn func(ctx context.Context, provider string, err error)) Option {
	return func(m *Manager) { m.onUnavailable = fn }
}

// NewManager creates a Manager and registers every credential in cfg.
func NewManager(cfg Config, opts ...Option) *Manager {
	cfg.ApplyDefaults()
	m := &Manager{
		cfg:   cfg,
		log:   logger.Nop(),
		now:   time.Now,
		pools: make(map[string][]*credentialRecord),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.WithComponent("keyquota")

	for provider, creds := range cfg.Providers {
		for _, c := range creds {
			m.Register(provider, c.ID, c.Secret)
		}
	}
	return m
}

// Register adds a credential. Registering an existing id replaces its secret
// and keeps its position and state.
func (m *Manager) Register(provider, id, secret string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, rec := range m.pools[provider] {
		if rec.id == id {
			rec.secret = secret
			return
		}
	}

	m.pools[provider] = append(m.pools[provider], &credentialRecord{
		provider: provider,
		id:       id,
		secret:   secret,
		state:    StateActive,
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:        provider + "/" + id,
			MaxFailures: m.cfg.CircuitThreshold,
			Cooldown:    m.cfg.CircuitCooldown,
			Now:         m.now,
		}),
	})
}

// Providers returns, sorted, the provider names with at least one registered
// credential.
func (m *Manager) Providers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.pools))
	for p := range m.pools {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Acquire returns the ACTIVE credential with the fewest requests, ties broken
// by registration order. Expired cooldowns are reclaimed first. When nothing
// is ACTIVE the error reports the dominant blocker: quota, then rate limit,
// then open circuit.
func (m *Manager) Acquire(ctx context.Context, provider string) (Credential, error) {
	if err := ctx.Err(); err != nil {
		return Credential{}, err
	}

	m.mu.Lock()
	now := m.now()
	pool := m.pools[provider]

	var best *credentialRecord
	for _, rec := range pool {
		m.reclaim(rec, now)
		if rec.state != StateActive {
			continue
		}
		if best == nil || rec.requests < best.requests {
			best = rec
		}
	}

	if best != nil {
		best.requests++
		best.lastUsed = now
		cred := Credential{Provider: provider, ID: best.id, Secret: best.secret}
		m.mu.Unlock()
		return cred, nil
	}

	err := unavailableError(provider, pool)
	m.mu.Unlock()

	m.log.Warn("no usable credential", logger.Fields(
		logger.FieldProvider, provider,
		logger.FieldError, err.Error(),
	))
	if m.onUnavailable != nil {
		m.onUnavailable(ctx, provider, err)
	}
	return Credential{}, err
}

func unavailableError(provider string, pool []*credentialRecord) error {
	var quota, rate, circuit time.Time
	var hasQuota, hasRate, hasCircuit bool

	for _, rec := range pool {
		switch rec.state {
		case StateQuotaExceeded:
			if !hasQuota || rec.cooldownUntil.Before(quota) {
				quota = rec.cooldownUntil
			}
			hasQuota = true
		case StateRateLimited:
			if !hasRate || rec.cooldownUntil.Before(rate) {
				rate = rec.cooldownUntil
			}
			hasRate = true
		case StateCircuitOpen:
			if !hasCircuit || rec.cooldownUntil.Before(circuit) {
				circuit = rec.cooldownUntil
			}
			hasCircuit = true
		}
	}

	switch {
	case hasQuota:
		return &QuotaExceededError{Provider: provider, Until: quota}
	case hasRate:
		return &RateLimitedError{Provider: provider, RetryAt: rate}
	case hasCircuit:
		return &CircuitOpenError{Provider: provider, RetryAt: circuit}
	default:
		return &NoCredentialError{Provider: provider}
	}
}

// reclaim returns a cooled-down credential to ACTIVE. Caller holds m.mu.
func (m *Manager) reclaim(rec *credentialRecord, now time.Time) {
	switch rec.state {
	case StateRateLimited, StateQuotaExceeded, StateCircuitOpen:
	default:
		return
	}
	if now.Before(rec.cooldownUntil) {
		return
	}
	from := rec.state
	if from == StateCircuitOpen {
		rec.breaker.Reset()
	}
	rec.state = StateActive
	rec.cooldownUntil = time.Time{}
	m.logTransition(rec, from, "cooldown elapsed")
}

// RecordSuccess resets the consecutive-failure counter of cred.
func (m *Manager) RecordSuccess(cred Credential) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.find(cred.Provider, cred.ID)
	if rec == nil {
		return
	}
	rec.successes++
	rec.breaker.Success()
}

// RecordFailure applies f to cred's state machine.
func (m *Manager) RecordFailure(cred Credential, f Failure) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.find(cred.Provider, cred.ID)
	if rec == nil {
		return
	}
	rec.failures++
	if rec.state == StateDisabled {
		return
	}

	now := m.now()
	from := rec.state
	switch f.Kind {
	case FailureRateLimit:
		cooldown := f.RetryAfter
		if cooldown <= 0 {
			cooldown = m.cfg.DefaultRateLimitCooldown
		}
		rec.state = StateRateLimited
		rec.cooldownUntil = now.Add(cooldown)
	case FailureQuota:
		rec.state = StateQuotaExceeded
		rec.cooldownUntil = now.Add(m.cfg.QuotaCooldown)
	default:
		rec.breaker.Failure()
		if rec.breaker.State() == resilience.StateOpen {
			rec.state = StateCircuitOpen
			rec.cooldownUntil = rec.breaker.OpenUntil()
		}
	}

	if rec.state != from {
		m.logTransition(rec, from, f.Kind.String())
	}
}

// Disable excludes a credential from selection until Enable.
func (m *Manager) Disable(provider, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.find(provider, id)
	if rec == nil {
		return errors.NotFound("credential", provider+"/"+id)
	}
	from := rec.state
	rec.state = StateDisabled
	rec.cooldownUntil = time.Time{}
	m.logTransition(rec, from, "operator disabled")
	return nil
}

// Enable returns a credential to ACTIVE and clears its failure history.
func (m *Manager) Enable(provider, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.find(provider, id)
	if rec == nil {
		return errors.NotFound("credential", provider+"/"+id)
	}
	from := rec.state
	rec.state = StateActive
	rec.cooldownUntil = time.Time{}
	rec.breaker.Reset()
	m.logTransition(rec, from, "operator enabled")
	return nil
}

// Snapshot returns the state of every credential of provider in
// registration order.
func (m *Manager) Snapshot(provider string) []Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	pool := m.pools[provider]
	out := make([]Snapshot, 0, len(pool))
	for _, rec := range pool {
		m.reclaim(rec, now)
		out = append(out, Snapshot{
			ID:                  rec.id,
			State:               rec.state,
			ConsecutiveFailures: rec.breaker.Failures(),
			CooldownUntil:       rec.cooldownUntil,
			Requests:            rec.requests,
			Successes:           rec.successes,
			Failures:            rec.failures,
			LastUsed:            rec.lastUsed,
		})
	}
	return out
}

func (m *Manager) find(provider, id string) *credentialRecord {
	for _, rec := range m.pools[provider] {
		if rec.id == id {
			return rec
		}
	}
	return nil
}

func (m *Manager) logTransition(rec *credentialRecord, from State, reason string) {
	if from == rec.state {
		return
	}
	fields := logger.Fields(
		logger.FieldProvider, rec.provider,
		logger.FieldCredential, rec.id,
		"from", string(from),
		"to", string(rec.state),
		"reason", reason,
	)
	if !rec.cooldownUntil.IsZero() {
		fields["cooldown_until"] = rec.cooldownUntil.Format(time.RFC3339)
	}
	m.log.Info("credential state changed", fields)
}
