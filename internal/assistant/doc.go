// Package assistant implements the conversational tool-use orchestrator
// behind the back-office AI assistant.
//
// It drives a multi-turn dialogue with Gemini: the model is advertised a
// fixed set of tenant-scoped data tools (Registry), its function-call
// requests are executed sequentially against the tenant's data (Dispatcher),
// and the batched results are fed back until the model produces a plain-text
// reply or the round bound is hit (Orchestrator). The conversation log is
// owned by the Session facade and persisted best-effort after every append
// with a 24-hour expiry (SnapshotStore).
//
// Failure policy: tool and persistence failures never abort a turn — they
// are folded into model-consumable results or logged. Model failures degrade
// to a fixed apology reply. Only a missing tenant propagates to the caller.
package assistant
