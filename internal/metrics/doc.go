// Package metrics provides the counter registry for dispatch observability.
//
// Components receive a Registry through dependency injection and default to
// NoopRegistry, so metrics stay optional without nil checks at call sites.
// MemoryRegistry backs tests and the one-shot CLI; PromRegistry forwards to
// Prometheus for the daemon. CounterReader gives tests baseline-then-delta
// reads over any implementation.
package metrics
