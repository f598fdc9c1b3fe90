// Package pipeline runs a meeting-processing job end to end.
//
// The [Orchestrator] owns the job's in-memory state for the duration of a
// run and pushes every transition to a [JobRepository]:
//
//	PENDING -> RUNNING -> TRANSCRIBING -> [IDENTIFYING] -> [CORRECTING] -> SUMMARIZING -> SUCCESS
//
// FAILED and CANCELLED are reachable from any in-flight state;
// PARTIAL_SUCCESS ends a run whose primary artifact succeeded but a
// secondary one did not. Progress moves through fixed bands (transcription
// 0-40, identification 40-60, correction 60-70, generation 70-100) and never
// decreases within a run.
//
// Stages are not retried here. Retries and backend fallback live in the
// transcription gateway and the artifact generator; a failed job is retried
// as a whole by requeueing it.
package pipeline
