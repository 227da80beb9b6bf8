// Package store implements the Redis-backed counter store and trending
// ranker: per-article and per-journal view/download counters, the bounded
// top-100 trending set, the country visit histogram, a generic TTL cache,
// and cached citation records.
//
// All consistency comes from Redis atomic primitives (INCRBY, ZINCRBY,
// HINCRBY); the store never holds application-level locks. Counter reads and
// writes are deliberately best-effort: an unreachable backend yields zero
// values so tracking degrades instead of failing.
package store
