// Package testutil provides test doubles and lifecycle helpers shared by
// package tests.
//
// Components started through [T] are stopped when the test ends:
//
//	func TestWorker(t *testing.T) {
//	    testutil.T(t).Setup(redisComponent)
//	}
//
// [MemStore] is an in-memory storage.BlobStore and [Transcoder] a
// media.Transcoder that treats file contents as durations, so pipeline code
// can run end to end without ffmpeg or a bucket.
package testutil
