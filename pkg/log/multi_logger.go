package log

// MultiLogger fans events out to several sinks, typically an operational
// SlogAdapter next to the FileLogger capturing the .rlog trace.
type MultiLogger []Logger

// NewMultiLogger combines sinks into one Logger. Events reach the sinks
// in argument order.
func NewMultiLogger(loggers ...Logger) MultiLogger {
	return MultiLogger(loggers)
}

// Log hands the event to every sink.
func (m MultiLogger) Log(event Event) {
	for _, l := range m {
		l.Log(event)
	}
}

var _ Logger = MultiLogger{}
