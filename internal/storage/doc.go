// Package storage keeps an append-only journal of delivery attempts.
//
// The journal is for operators (what was sent, when, and why it failed).
// Nothing in hwbot reads it back: the poll loop's cursor and last-sent text
// always start fresh on restart.
package storage
