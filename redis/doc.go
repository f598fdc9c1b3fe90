// Package redis wraps go-redis with the service logger, config conventions
// and component lifecycle. On top of the client it provides
// JSONCache (backing the job read-through cache) and CancellationFlags
// (per-job cancel requests that are consumed once observed).
//
//	client, _ := redis.New(cfg, log)
//	flags := redis.NewCancellationFlags(client, "", 0)
//	_ = flags.Request(ctx, jobID)
//	cancelled, _ := flags.Cancelled(ctx, jobID) // true once, then false
package redis
