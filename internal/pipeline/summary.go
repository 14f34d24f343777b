package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"salesetl/internal/dag"
	"salesetl/internal/notify"
)

// Run statuses.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Summary is the per-run report written to the results directory and sent
// to the configured notifier.
type Summary struct {
	RunID    string        `json:"run_id"`
	Job      string        `json:"job"`
	Status   string        `json:"status"`
	Started  time.Time     `json:"started"`
	Finished time.Time     `json:"finished"`
	Tasks    []TaskSummary `json:"tasks"`

	// Fingerprints maps every CSV the run wrote to its xxh3 digest.
	Fingerprints map[string]string `json:"fingerprints,omitempty"`
}

// TaskSummary is the outcome of one task.
type TaskSummary struct {
	Name     string   `json:"name"`
	State    string   `json:"state"`
	Attempts int      `json:"attempts"`
	Duration string   `json:"duration"`
	Outputs  []string `json:"outputs,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// Task returns the entry for name.
func (s *Summary) Task(name string) (TaskSummary, bool) {
	for _, t := range s.Tasks {
		if t.Name == name {
			return t, true
		}
	}
	return TaskSummary{}, false
}

// summarize lists tasks in topological order.
func (p *Pipeline) summarize(g *dag.Graph, res *dag.RunResult, started, finished time.Time) *Summary {
	s := &Summary{
		RunID:    p.runID,
		Job:      p.cfg.Job,
		Status:   StatusSucceeded,
		Started:  started.UTC(),
		Finished: finished.UTC(),
	}
	for _, name := range g.TopologicalOrder() {
		st := res.States[name]
		ts := TaskSummary{
			Name:     name,
			State:    string(st),
			Attempts: res.Attempts[name],
			Duration: res.Durations[name].Truncate(time.Millisecond).String(),
			Outputs:  res.Outputs[name],
		}
		if err := res.Errors[name]; err != nil {
			ts.Error = err.Error()
		}
		if st != dag.TaskCompleted {
			s.Status = StatusFailed
		}
		s.Tasks = append(s.Tasks, ts)
	}

	p.mu.Lock()
	if len(p.fingerprints) > 0 {
		s.Fingerprints = make(map[string]string, len(p.fingerprints))
		for k, v := range p.fingerprints {
			s.Fingerprints[k] = v
		}
	}
	p.mu.Unlock()
	return s
}

// Failed returns the names of tasks that did not complete, sorted.
func (s *Summary) Failed() []string {
	var out []string
	for _, t := range s.Tasks {
		if t.State == string(dag.TaskFailed) {
			out = append(out, t.Name)
		}
	}
	sort.Strings(out)
	return out
}

// WriteFile stores the summary as indented JSON at path, replacing any
// previous summary.
func (s *Summary) WriteFile(path string) error {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".summary-*")
	if err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(append(b, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("write summary: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}

// Message wraps the summary for a notifier.
func (s *Summary) Message() (notify.Message, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return notify.Message{}, fmt.Errorf("marshal summary: %w", err)
	}
	return notify.Message{ID: s.RunID, ContentType: "application/json", Body: b}, nil
}
