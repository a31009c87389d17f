// Package artifacts holds the artifact documents an optimization run writes
// and their serialization helpers. This package has no dependency on the opt
// engine: it stores pure data types, so the downstream handoff collaborator
// can share the schemas without importing the pipeline.
//
// Schema versions are load-bearing: the handoff bundle discovers these files
// by slug + suffix and does not re-derive their content, so any field change
// here is a breaking change for it.
package artifacts

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

const (
	// SchemaVersionSettings versions optimization_settings.json.
	SchemaVersionSettings = "1.2"
	// SchemaVersionTrace versions optimization_trace.json.
	SchemaVersionTrace = "1.1"

	// SettingsFile, ProposalsFile and TraceFile are the discoverable artifact
	// names under the per-session directory.
	SettingsFile  = "optimization_settings.json"
	ProposalsFile = "proposals.csv"
	TraceFile     = "optimization_trace.json"
)

// Guardrails echoes the guardrail parameters of a run.
type Guardrails struct {
	SafetyK    float64 `json:"safety_k"`
	NoveltyEps float64 `json:"novelty_eps"`
	SigmaHi    float64 `json:"sigma_hi"`
}

// SettingsDoc is the optimization_settings.json payload.
type SettingsDoc struct {
	SchemaVersion         string     `json:"schema_version"`
	BatchSize             int        `json:"batch_size"`
	Acquisition           string     `json:"acquisition"`
	AcquisitionForScoring string     `json:"acquisition_for_scoring"`
	UCBK                  float64    `json:"ucb_k"`
	Seed                  int64      `json:"seed"`
	UncertaintyMode       string     `json:"uncertainty_mode"`
	Constraints           any        `json:"constraints"`
	Guardrails            Guardrails `json:"guardrails"`
	TimestampUTC          string     `json:"timestamp_utc"`
}

// Ack is the acknowledgment block embedded in the trace.
type Ack struct {
	AckRequired bool     `json:"ack_required"`
	Level       int      `json:"level"`
	Messages    []string `json:"messages"`
	Operator    string   `json:"operator"`
	AckTS       *string  `json:"ack_ts"`
}

// TraceDoc is the optimization_trace.json payload.
type TraceDoc struct {
	SchemaVersion       string   `json:"schema_version"`
	CandidateCount      int      `json:"candidate_count"`
	DiversityKept       int      `json:"diversity_kept"`
	SafetyBlocked       int      `json:"safety_blocked"`
	NoveltyBlocked      int      `json:"novelty_blocked"`
	DiversityMin        *float64 `json:"diversity_min"`
	ApproxUncertainFrac float64  `json:"approx_uncertain_frac"`
	HITLLevel           int      `json:"hitl_level"`
	HITLMessages        []string `json:"hitl_messages"`
	RuntimeSec          float64  `json:"runtime_sec"`
	TimestampUTC        string   `json:"timestamp_utc"`
	Ack                 Ack      `json:"ack"`
}

// NowUTC returns the current time as an RFC3339 UTC string, the timestamp
// format shared by all artifacts.
func NowUTC() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// SessionDir returns the per-session artifact directory under root.
func SessionDir(root, slug string) string {
	return filepath.Join(root, slug)
}

// WriteJSON writes doc as indented JSON, creating parent directories.
// Artifacts are write-once per run: an existing file is overwritten
// (last-write-wins, no locking).
func WriteJSON(path string, doc any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

// WriteProposalsCSV writes the proposals table. The header row is written
// even when there are zero proposals.
func WriteProposalsCSV(path string, header []string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}

// AppendRunLog appends one event record to the per-session JSONL run log.
// Each record gets a unique run_id and a ts stamp if the caller did not set
// them.
func AppendRunLog(path string, entry map[string]any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	if _, ok := entry["run_id"]; !ok {
		entry["run_id"] = uuid.NewString()
	}
	if _, ok := entry["ts"]; !ok {
		entry["ts"] = NowUTC()
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal log entry: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open run log: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append run log: %w", err)
	}
	return f.Close()
}
