package runner

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/natefinch/atomic"
)

// Event is one line of a run transcript.
type Event struct {
	Type       string         `json:"t"`
	Seq        int            `json:"seq"`
	Time       time.Time      `json:"time"`
	CheckID    string         `json:"check_id,omitempty"`
	CheckName  string         `json:"check_name,omitempty"`
	Unit       string         `json:"unit,omitempty"`
	Findings   int            `json:"findings,omitempty"`
	Message    string         `json:"message,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Known event types
const (
	EventRunStart     = "RUN_START"
	EventPairDone     = "PAIR_DONE"
	EventPairError    = "PAIR_ERROR"
	EventRunCancelled = "RUN_CANCELLED"
	EventRunEnd       = "RUN_END"
)

// Recorder collects transcript events from a run. A nil Recorder discards
// everything.
type Recorder struct {
	mu     sync.Mutex
	now    func() time.Time
	events []Event
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{now: time.Now}
}

// Record appends an event, stamping its sequence number and time.
func (r *Recorder) Record(e Event) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	e.Seq = len(r.events) + 1
	e.Time = r.now().UTC()
	r.events = append(r.events, e)
}

// Transcript returns the events recorded so far.
func (r *Recorder) Transcript() *Transcript {
	if r == nil {
		return &Transcript{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return &Transcript{Events: append([]Event(nil), r.events...)}
}

// Transcript is a parsed or recorded list of events.
type Transcript struct {
	Events []Event
	Path   string
}

// WriteTranscript writes events as JSON lines, replacing path atomically.
func WriteTranscript(path string, events []Event) error {
	var buf bytes.Buffer
	for _, event := range events {
		data, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("failed to marshal event: %w", err)
		}
		buf.Write(data)
		buf.WriteByte('\n')
	}
	if err := atomic.WriteFile(path, &buf); err != nil {
		return fmt.Errorf("failed to write transcript: %w", err)
	}
	return nil
}

// LoadTranscript reads a transcript written by WriteTranscript.
func LoadTranscript(path string) (*Transcript, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open transcript: %w", err)
	}
	defer file.Close()

	t := &Transcript{Path: path}
	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var event Event
		if err := json.Unmarshal(line, &event); err != nil {
			return nil, fmt.Errorf("failed to parse line %d: %w", lineNum, err)
		}
		t.Events = append(t.Events, event)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading transcript: %w", err)
	}
	return t, nil
}

// Errors returns every PAIR_ERROR event.
func (t *Transcript) Errors() []Event {
	var out []Event
	for _, event := range t.Events {
		if event.Type == EventPairError {
			out = append(out, event)
		}
	}
	return out
}

// HasErrors reports whether any pair failed.
func (t *Transcript) HasErrors() bool {
	return len(t.Errors()) > 0
}

// Cancelled reports whether the run stopped scheduling early.
func (t *Transcript) Cancelled() bool {
	for _, event := range t.Events {
		if event.Type == EventRunCancelled {
			return true
		}
	}
	return false
}

// EventCount returns the total number of events.
func (t *Transcript) EventCount() int {
	return len(t.Events)
}
