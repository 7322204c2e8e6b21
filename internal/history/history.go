package history

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"make-upload/internal/upload"
)

const HistoryDir = ".make-upload"
const HistoryFile = "history.json"

// MaxEntries bounds the file; older jobs are dropped first.
const MaxEntries = 200

type Entry struct {
	JobID     string    `json:"job_id"`
	Project   string    `json:"project"`
	Profile   string    `json:"profile"`
	State     string    `json:"state"`
	Total     int       `json:"total"`
	Succeeded int       `json:"succeeded"`
	Failed    []string  `json:"failed,omitempty"`
	Fatal     string    `json:"fatal,omitempty"`
	Started   time.Time `json:"started"`
	Finished  time.Time `json:"finished"`
}

type History struct {
	Entries []Entry `json:"entries"`
}

// FromSummary converts a finished job.
func FromSummary(s upload.Summary) Entry {
	e := Entry{
		JobID:     s.ID,
		Project:   s.Project,
		Profile:   s.Profile,
		State:     s.State.String(),
		Total:     s.Total,
		Succeeded: s.Succeeded,
		Failed:    s.FailedPaths(),
		Started:   s.Started,
		Finished:  s.Finished,
	}
	if s.Fatal != nil {
		e.Fatal = s.Fatal.Error()
	}
	return e
}

func GetHistoryDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, HistoryDir)
}

func GetHistoryPath() string {
	return filepath.Join(GetHistoryDir(), HistoryFile)
}

func LoadHistory() (*History, error) {
	path := GetHistoryPath()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &History{Entries: []Entry{}}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var h History
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

func SaveHistory(h *History) error {
	if err := os.MkdirAll(GetHistoryDir(), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(GetHistoryPath(), data, 0644)
}

// Add appends a job entry.
func Add(e Entry) error {
	h, err := LoadHistory()
	if err != nil {
		return err
	}
	h.Entries = append(h.Entries, e)
	if len(h.Entries) > MaxEntries {
		h.Entries = h.Entries[len(h.Entries)-MaxEntries:]
	}
	return SaveHistory(h)
}

// ForProject returns the jobs of a project, most recent first.
func ForProject(project string) []Entry {
	h, err := LoadHistory()
	if err != nil {
		return []Entry{}
	}
	var out []Entry
	for _, e := range h.Entries {
		if e.Project == project {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Finished.After(out[j].Finished)
	})
	return out
}

// Projects lists every project with recorded jobs, most recently used first.
func Projects() []string {
	h, err := LoadHistory()
	if err != nil {
		return []string{}
	}
	last := map[string]time.Time{}
	for _, e := range h.Entries {
		if e.Finished.After(last[e.Project]) || last[e.Project].IsZero() {
			last[e.Project] = e.Finished
		}
	}
	out := make([]string, 0, len(last))
	for p := range last {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if last[out[i]].Equal(last[out[j]]) {
			return out[i] < out[j]
		}
		return last[out[i]].After(last[out[j]])
	})
	return out
}

// SearchProjects filters Projects case-insensitively.
func SearchProjects(query string) []string {
	var results []string
	for _, p := range Projects() {
		if strings.Contains(strings.ToLower(p), strings.ToLower(query)) {
			results = append(results, p)
		}
	}
	return results
}

// RemoveProject forgets every job of a project.
func RemoveProject(project string) error {
	h, err := LoadHistory()
	if err != nil {
		return err
	}
	kept := h.Entries[:0]
	for _, e := range h.Entries {
		if e.Project != project {
			kept = append(kept, e)
		}
	}
	h.Entries = kept
	return SaveHistory(h)
}
