/*
Package observability provides hooks for monitoring the codeflow trace engine.

Metrics exports Prometheus collectors fed by domain.TraceHooks, LoggingHooks
audits trace builds with slog, and Chain combines several hook sets into one.
*/
package observability
