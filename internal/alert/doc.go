// Package alert implements the in-memory alert engine: the record store,
// the trigger registry, per-user quota admission and the scheduler that arms
// one-shot timers and hourly cron entries.
//
// All state is process-local; nothing survives a restart.
package alert
