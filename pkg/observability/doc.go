/*
Package observability provides Prometheus instrumentation for Colloquy.

Executions report their lifecycle, step kinds, timeouts and result-delivery failures;
the session registry reports the live session count, idle expiries and lease release
errors. Structured logs are emitted separately through log/slog by each component.
*/
package observability
