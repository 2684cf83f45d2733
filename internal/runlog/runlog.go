package runlog

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mohammad-safakhou/planweave/utils"
)

// Entry is one recorded workflow execution, one JSON file per run.
type Entry struct {
	WorkflowName    string  `json:"workflow_name"`
	StartTime       string  `json:"start_time"`
	EndTime         string  `json:"end_time"`
	DurationSeconds float64 `json:"duration_seconds"`
	Success         bool    `json:"success"`
	Result          string  `json:"result"`
	Error           string  `json:"error,omitempty"`
}

// Store writes and reads execution log files under a directory. Filenames
// are "<start timestamp>_<sanitized workflow name>.json", so a plain
// reverse-lexicographic sort is newest first.
type Store struct {
	dir    string
	index  *Index
	logger *log.Logger
}

// NewStore creates the log directory if needed. index may be nil.
func NewStore(dir string, index *Index) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create logs dir: %w", err)
	}
	return &Store{
		dir:    dir,
		index:  index,
		logger: log.New(log.Writer(), "[RUNLOG] ", log.LstdFlags),
	}, nil
}

// Record writes one execution entry and indexes it when search is enabled.
// The written path is returned.
func (s *Store) Record(workflowName string, start, end time.Time, result string, success bool, execErr string) (string, error) {
	entry := Entry{
		WorkflowName:    workflowName,
		StartTime:       start.Format(time.RFC3339),
		EndTime:         end.Format(time.RFC3339),
		DurationSeconds: end.Sub(start).Seconds(),
		Success:         success,
		Result:          result,
		Error:           execErr,
	}

	filename := fmt.Sprintf("%s_%s.json", start.Format("20060102_150405"), utils.Sanitize(workflowName))
	path := filepath.Join(s.dir, filename)

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write log: %w", err)
	}

	if s.index != nil {
		if err := s.index.Add(filename, entry); err != nil {
			s.logger.Printf("index %s: %v", filename, err)
		}
	}
	return path, nil
}

// List returns all entries, newest first, optionally filtered by workflow
// name (the name is matched sanitized, as the filenames are).
func (s *Store) List(workflowName string) ([]Entry, error) {
	files, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}

	var names []string
	suffix := ""
	if workflowName != "" {
		suffix = "_" + utils.Sanitize(workflowName) + ".json"
	}
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
			continue
		}
		if suffix != "" && !strings.HasSuffix(f.Name(), suffix) {
			continue
		}
		names = append(names, f.Name())
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	var out []Entry
	for _, name := range names {
		entry, err := s.read(name)
		if err != nil {
			s.logger.Printf("parse %s: %v", name, err)
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}

// Latest returns the most recent entry for a workflow, or found=false.
func (s *Store) Latest(workflowName string) (Entry, bool, error) {
	entries, err := s.List(workflowName)
	if err != nil {
		return Entry{}, false, err
	}
	if len(entries) == 0 {
		return Entry{}, false, nil
	}
	return entries[0], true, nil
}

func (s *Store) read(name string) (Entry, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return Entry{}, err
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return Entry{}, err
	}
	return entry, nil
}
