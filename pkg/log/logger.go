package log

// Logger consumes the power event stream of a controller.
//
// The sequencers call Log inline during power transitions, so
// implementations must not block; queue or drop instead. Implementations
// must be safe for concurrent use.
type Logger interface {
	Log(event Event)
}

// NoopLogger drops every event. A controller configured without an event
// sink logs through this.
type NoopLogger struct{}

// Log throws the event away.
func (NoopLogger) Log(Event) {}

var _ Logger = NoopLogger{}
