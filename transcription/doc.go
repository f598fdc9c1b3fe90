// Package transcription turns a job's audio sources into one ordered,
// speaker-labelled transcript.
//
// The Gateway downloads the sources, concatenates them into a canonical
// stream (recording where each source starts), publishes that stream behind
// a signed URL and hands it to an ordered list of submit/poll backends. A
// backend failing for operational reasons moves the gateway on to the next
// one; sensitive content and undecodable audio stop the list.
//
// # Backends
//
//   - transcription/assembly: hosted diarizing transcription over REST
//   - transcription/whisper: OpenAI audio transcription (text only)
//
// # Usage
//
//	gw := transcription.NewGateway(cfg, store, ffmpeg,
//		[]transcription.Backend{primary, fallback},
//		transcription.WithLogger(log))
//	res, err := gw.Transcribe(ctx, transcription.Request{JobID: id, Sources: refs})
package transcription
