// Package voice is the real-time dialogue orchestrator: it turns a
// caller's audio stream into text, decides when a turn has ended,
// generates a response with retrieval and tool support, and streams
// synthesized audio back, for many concurrent calls under a capacity
// limit.
//
// Each call is one Session driven by a single event loop; pipeline
// stages communicate through ordered channels and share no state beyond
// them. The Scheduler is the only cross-session component: it admits
// calls against the session limit and exposes aggregate metrics.
//
// Caller speech that arrives while a response is generating or playing
// is buffered and handled once the session returns to idle; true
// barge-in interruption is not supported.
package voice
