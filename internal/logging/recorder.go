package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// Recorder is a Logger that keeps every entry in memory, including Trace.
// Tests use it to look at what a session logged for each ask.
type Recorder struct {
	*Logger
	logs *observer.ObservedLogs
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	core, logs := observer.New(TraceLevel)
	return &Recorder{Logger: New(zap.New(core)), logs: logs}
}

// Entries returns everything recorded so far.
func (r *Recorder) Entries() []observer.LoggedEntry {
	return r.logs.All()
}

// Has reports whether an entry with the exact message was logged at level.
func (r *Recorder) Has(level zapcore.Level, msg string) bool {
	return r.logs.FilterLevelExact(level).FilterMessage(msg).Len() > 0
}

// Fields returns the fields of the last entry with the given message, or
// nil when there is none.
func (r *Recorder) Fields(msg string) map[string]any {
	entries := r.logs.FilterMessage(msg).All()
	if len(entries) == 0 {
		return nil
	}
	return entries[len(entries)-1].ContextMap()
}

// ByAsk groups the messages of entries carrying an ask.id, in log order.
func (r *Recorder) ByAsk() map[string][]string {
	out := map[string][]string{}
	for _, e := range r.logs.All() {
		if id, ok := e.ContextMap()["ask.id"].(string); ok {
			out[id] = append(out[id], e.Message)
		}
	}
	return out
}
