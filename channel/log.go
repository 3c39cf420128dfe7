package channel

import "github.com/btcsuite/btclog"

// log is the package-level logger used by the channel state machine. It's
// disabled by default; callers wire in a concrete logger with UseLogger, the
// same convention used to plug lnwallet's walletLog into the daemon's
// backend.
var log = btclog.Disabled

// UseLogger uses a specified Logger to output package logging info.
func UseLogger(logger btclog.Logger) {
	log = logger
}

// logClosure defers a potentially expensive String computation (e.g. a
// spew.Sdump of a commitment transaction) until the log record is actually
// written, so trace-level dumps cost nothing when the logger is disabled.
// Mirrors the newLogClosure/logClosure pair used throughout lnd's
// subsystems alongside walletLog.Tracef.
type logClosure func() string

func (c logClosure) String() string {
	return c()
}

func newLogClosure(c func() string) logClosure {
	return logClosure(c)
}
