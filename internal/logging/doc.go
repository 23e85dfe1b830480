// Package logging builds slog loggers for terrapipe commands and carries
// standardized structured fields (scene PID, stage, correlation ID) from
// context into log records. Console and JSON handlers share the same
// level/output plumbing; commands construct one logger at startup and pass
// it down.
package logging
