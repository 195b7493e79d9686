package pipeline

import (
	"sync"
	"time"

	"github.com/sells-group/shopping-cli/internal/model"
	"github.com/sells-group/shopping-cli/internal/resilience"
)

// EventKind distinguishes progress notifications.
type EventKind string

const (
	EventStage   EventKind = "stage"
	EventAttempt EventKind = "attempt"
)

// Event is a progress notification for UI step display. Events never affect
// control flow.
type Event struct {
	RunID     string            `json:"run_id"`
	Kind      EventKind         `json:"kind"`
	Stage     model.StageName   `json:"stage"`
	Status    model.StageStatus `json:"status,omitempty"`
	Degraded  bool              `json:"degraded,omitempty"`
	Detail    string            `json:"detail,omitempty"`
	Operation string            `json:"operation,omitempty"`
	Attempt   int               `json:"attempt,omitempty"`
	MaxTries  int               `json:"max_attempts,omitempty"`
	Delay     time.Duration     `json:"delay,omitempty"`
	Retrying  bool              `json:"retrying,omitempty"`
	Error     string            `json:"error,omitempty"`
	Time      time.Time         `json:"time"`
}

// ProgressFunc receives progress events. Calls are serialized.
type ProgressFunc func(Event)

// notifier serializes calls to a ProgressFunc; item calls in the search and
// scrape stages report attempts from several goroutines.
type notifier struct {
	mu    sync.Mutex
	runID string
	fn    ProgressFunc
}

func (n *notifier) emit(ev Event) {
	if n == nil || n.fn == nil {
		return
	}
	ev.RunID = n.runID
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.fn(ev)
}

func (n *notifier) stage(stage model.StageName, status model.StageStatus, degraded bool, detail string) {
	n.emit(Event{Kind: EventStage, Stage: stage, Status: status, Degraded: degraded, Detail: detail})
}

// attempts returns an OnAttempt hook that forwards retry attempts for stage.
func (n *notifier) attempts(stage model.StageName) func(resilience.AttemptEvent) {
	return func(a resilience.AttemptEvent) {
		ev := Event{
			Kind:      EventAttempt,
			Stage:     stage,
			Operation: a.Operation,
			Attempt:   a.Attempt,
			MaxTries:  a.MaxAttempts,
			Delay:     a.Delay,
			Retrying:  a.Retrying,
		}
		if a.Err != nil {
			ev.Error = a.Err.Error()
		}
		n.emit(ev)
	}
}
