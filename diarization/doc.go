// Package diarization cleans up speaker labels after identification.
//
// Correct applies a label -> identity mapping and folds rare labels, which
// are usually diarization noise, into the dominant speaker. ErrorRate
// measures diarization error between a reference and a hypothesis
// transcript and is used to evaluate corrections offline.
package diarization
