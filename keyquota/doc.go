// Package keyquota owns the per-provider credential pools.
//
// Each credential moves through ACTIVE, RATE_LIMITED, QUOTA_EXCEEDED,
// CIRCUIT_OPEN and DISABLED. Acquire hands out the least-used ACTIVE
// credential and every acquisition is paired with exactly one RecordSuccess
// or RecordFailure. Do wraps that pairing around a call:
//
//	text, err := keyquota.Do(ctx, mgr, "openai", func(ctx context.Context, cred keyquota.Credential) (string, error) {
//	    return client(cred.Secret).Generate(ctx, prompt)
//	})
package keyquota
