// Package component defines the lifecycle contract shared by the worker's
// infrastructure pieces (database, redis, kafka, job queue, admin server)
// and a registry that starts them in order and stops them in reverse.
package component
