package model

import (
	"slices"
	"time"

	"github.com/rotisserie/eris"
)

// StageName identifies a pipeline stage.
type StageName string

const (
	StageAnalyze    StageName = "analyze"
	StageSearch     StageName = "search"
	StageScrape     StageName = "scrape"
	StageSynthesize StageName = "synthesize"
)

// Stages returns the stages in execution order.
func Stages() []StageName {
	return []StageName{StageAnalyze, StageSearch, StageScrape, StageSynthesize}
}

// StageStatus represents the state of a pipeline stage.
type StageStatus string

const (
	StageStatusPending StageStatus = "pending"
	StageStatusRunning StageStatus = "running"
	StageStatusOK      StageStatus = "ok"
	StageStatusFailed  StageStatus = "failed"
	StageStatusSkipped StageStatus = "skipped"
)

// Satisfied reports whether a stage that ended in this status lets its
// dependents run.
func (s StageStatus) Satisfied() bool {
	return s == StageStatusOK || s == StageStatusSkipped
}

// StageEntry is one record in the execution trace.
type StageEntry struct {
	Stage     StageName   `json:"stage"`
	Status    StageStatus `json:"status"`
	Error     string      `json:"error,omitempty"`
	Degraded  bool        `json:"degraded,omitempty"`
	Detail    string      `json:"detail,omitempty"`
	StartedAt time.Time   `json:"started_at"`
	Duration  int64       `json:"duration_ms"`
}

// ErrFinalAnswerSet is returned when a second final answer is written.
var ErrFinalAnswerSet = eris.New("final answer already set")

// PipelineState is the record threaded through every stage of one request.
// The query is fixed at construction, the trace only grows and the final
// answer can be written once.
type PipelineState struct {
	userQuery string

	Analysis      *AnalysisResult        `json:"analysis,omitempty"`
	SearchResults []SearchHit            `json:"search_results"`
	ScrapedPages  map[string]ScrapedPage `json:"scraped_pages"`
	Messages      []ConversationTurn     `json:"messages,omitempty"`

	finalAnswer string
	answered    bool
	trace       []StageEntry
}

// NewPipelineState creates the state for a single query. The history slice
// is copied.
func NewPipelineState(query string, history []ConversationTurn) *PipelineState {
	return &PipelineState{
		userQuery:    query,
		ScrapedPages: make(map[string]ScrapedPage),
		Messages:     slices.Clone(history),
	}
}

// UserQuery returns the original question.
func (s *PipelineState) UserQuery() string { return s.userQuery }

// FinalAnswer returns the answer text, empty until set.
func (s *PipelineState) FinalAnswer() string { return s.finalAnswer }

// HasFinalAnswer reports whether SetFinalAnswer succeeded.
func (s *PipelineState) HasFinalAnswer() bool { return s.answered }

// SetFinalAnswer records the answer. Only the first call succeeds.
func (s *PipelineState) SetFinalAnswer(answer string) error {
	if s.answered {
		return ErrFinalAnswerSet
	}
	s.finalAnswer = answer
	s.answered = true
	return nil
}

// AppendStage adds an entry to the end of the trace.
func (s *PipelineState) AppendStage(e StageEntry) {
	s.trace = append(s.trace, e)
}

// Trace returns a copy of the execution trace.
func (s *PipelineState) Trace() []StageEntry {
	return slices.Clone(s.trace)
}

// StageEntryFor returns the most recent trace entry for stage.
func (s *PipelineState) StageEntryFor(stage StageName) (StageEntry, bool) {
	for i := len(s.trace) - 1; i >= 0; i-- {
		if s.trace[i].Stage == stage {
			return s.trace[i], true
		}
	}
	return StageEntry{}, false
}

// HitURLs returns the set of URLs present in SearchResults.
func (s *PipelineState) HitURLs() map[string]bool {
	urls := make(map[string]bool, len(s.SearchResults))
	for _, h := range s.SearchResults {
		urls[h.URL] = true
	}
	return urls
}
