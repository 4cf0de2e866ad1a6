package provisioning

import (
	"fmt"
	"sync"
)

// RecordingObserver keeps every event in memory. It is meant for tests.
type RecordingObserver struct {
	mu     sync.Mutex
	Events []Event
	Lines  []string
}

// NewRecordingObserver returns an empty recorder.
func NewRecordingObserver() *RecordingObserver {
	return &RecordingObserver{}
}

func (o *RecordingObserver) Printf(format string, v ...any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Lines = append(o.Lines, fmt.Sprintf(format, v...))
}

func (o *RecordingObserver) Event(event Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Events = append(o.Events, event)
}

func (o *RecordingObserver) Progress(string, int, int) {}

func (o *RecordingObserver) WithFields(map[string]string) Observer {
	return o
}

// Types returns the recorded event types in order.
func (o *RecordingObserver) Types() []EventType {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]EventType, len(o.Events))
	for i, e := range o.Events {
		out[i] = e.Type
	}
	return out
}
