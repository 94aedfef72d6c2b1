// Package deepdub provides a Go client for the Deepdub text-to-speech
// and voice cloning APIs.
//
// The client exposes three services:
//
//   - Client.TTS: one-shot and streaming speech synthesis
//   - Client.Voice: voice asset management (cloning) and gender classification
//   - Client.Stream: persistent bidirectional streaming synthesis sessions
//
// # Quick start
//
// Create a client (the API key may also come from DEEPDUB_API_KEY):
//
//	client, err := deepdub.NewClient(deepdub.WithAPIKey("your_api_key"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// One-shot synthesis over REST:
//
//	audio, err := client.TTS.Synthesize(ctx, &deepdub.TTSRequest{
//	    Text:          "Hello, world!",
//	    VoicePromptID: "my-voice",
//	    Model:         deepdub.ModelETTS25,
//	})
//
// Streaming synthesis over a websocket session:
//
//	session, err := client.Stream.OpenSession(ctx, &deepdub.StreamConfig{
//	    Model:         deepdub.ModelETTS25,
//	    Locale:        "en-US",
//	    VoicePromptID: "my-voice",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer session.Close()
//
//	session.SendText(ctx, "Hello, ")
//	session.SendText(ctx, "world!")
//
//	for chunk, err := range session.Recv() {
//	    if err != nil {
//	        break
//	    }
//	    // process chunk.Data
//	}
//
// # Authentication
//
// All requests carry the API key in the x-api-key header. The key is
// supplied with WithAPIKey or the DEEPDUB_API_KEY environment variable.
// EU-region endpoints are selected with WithEU(true) or DD_EU=1.
//
// # Error handling
//
// REST and wire-protocol failures are reported as *Error with predicate
// helpers:
//
//	if err != nil {
//	    if e, ok := deepdub.AsError(err); ok && e.IsRateLimit() {
//	        // back off
//	    }
//	}
//
// Streaming sessions distinguish transport faults (*ConnectionError,
// retried automatically with bounded backoff), credential rejection
// (*AuthError), contract violations (*ProtocolError, *OrderingError) and
// exhausted recovery (*UnrecoverableError). See StreamSession for the
// lifecycle and retry rules.
package deepdub
