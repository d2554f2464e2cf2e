// Package logging assembles the structured slog loggers used across villager.
//
// It owns the console and JSON handlers, level and output plumbing, and the
// standard field keys (component, archive, period day, run id) so parser,
// converter and CLI log lines share one shape. Lenient parse decisions are
// logged through WarnWithContext, which always carries an event type, a hint
// and the impact on the resulting story. NewNop serves tests and wiring code
// that has no logger.
package logging
