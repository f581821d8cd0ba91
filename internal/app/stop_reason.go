package app

// StopReason is logged on shutdown and sent to systemd as the final STATUS.
type StopReason string

const (
	StopSignal     StopReason = "signal"
	StopFatalError StopReason = "fatal_error"
)
