// Package notifier delivers rendered status notifications to the single
// configured chat.
//
// # Transport
//
// The Sink delegates delivery to a transport.Sender (the Telegram adapter in
// production). Sends are paced by a token-bucket limiter and each attempt is
// bounded by a timeout.
//
// # Failures
//
// Deliver never panics and never decides what happens next: every failure is
// reported as a *DeliveryError and the poll loop retries on its own schedule.
//
// # History
//
// For operator visibility, the sink keeps a small in-memory history of recent
// deliveries and, when storage is configured, appends each one to the journal.
package notifier
