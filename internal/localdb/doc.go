// Package localdb emulates a table-based remote database on top of a
// key-value store.
//
// Every table lives under one key as a serialized collection. Profiles and
// role assignments are keyed maps, every other table is an append-only list.
// Queries are immutable values built with Select, Eq, Order and Limit and run
// by exactly one terminal call (Execute, Single, Insert, Upsert, Update or
// Delete).
package localdb
