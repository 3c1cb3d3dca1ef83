// Package postgres stores sessions and users in PostgreSQL through a pgx connection pool.
//
// Data is kept as JSONB so any map produced by a dialogue survives a round trip.
// [Connect] retries startup failures with linear backoff, which rides out a database
// container that comes up after the service.
package postgres
