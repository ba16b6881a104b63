package build

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/assetpipe/internal/config"
	"git.home.luguber.info/inful/assetpipe/internal/sourceinfo"
)

// ReportSchemaVersion is bumped when the serialized report changes shape.
const ReportSchemaVersion = 1

// BuildOutcome is the typed enumeration of final build result states.
type BuildOutcome string

const (
	OutcomeSuccess  BuildOutcome = "success"
	OutcomeWarning  BuildOutcome = "warning"
	OutcomeFailed   BuildOutcome = "failed"
	OutcomeCanceled BuildOutcome = "canceled"
)

// StageCount aggregates counts of outcomes for a stage.
type StageCount struct {
	Success  int `json:"success"`
	Warning  int `json:"warning"`
	Fatal    int `json:"fatal"`
	Canceled int `json:"canceled"`
}

// Report captures what a build pass did.
type Report struct {
	BuildID    string
	Mode       config.Mode
	Production bool
	Minify     bool
	Source     *sourceinfo.Info
	Start      time.Time
	End        time.Time

	Files     int // discovered source files
	Routed    int // files matched by a rule
	Unmatched int
	Entries   int
	Chunks    int
	Emitted   map[string]int // asset class -> files in the compilation
	Plugins   []string       // plugins applied, in order

	Errors          []error
	Warnings        []error
	StageDurations  map[string]time.Duration
	StageErrorKinds map[StageName]StageErrorKind
	StageCounts     map[StageName]StageCount
	Outcome         BuildOutcome
}

func newReport(opts config.Options) *Report {
	return &Report{
		BuildID:         uuid.NewString(),
		Mode:            opts.Mode,
		Production:      opts.Production,
		Minify:          opts.Minify(),
		Start:           time.Now(),
		Emitted:         map[string]int{},
		StageDurations:  map[string]time.Duration{},
		StageErrorKinds: map[StageName]StageErrorKind{},
		StageCounts:     map[StageName]StageCount{},
	}
}

// deriveOutcome sets Outcome based on recorded errors and warnings.
func (r *Report) deriveOutcome() {
	switch {
	case len(r.Errors) > 0:
		for _, e := range r.Errors {
			if se, ok := e.(*StageError); ok && se.Kind == StageErrorCanceled {
				r.Outcome = OutcomeCanceled
				return
			}
		}
		r.Outcome = OutcomeFailed
	case len(r.Warnings) > 0:
		r.Outcome = OutcomeWarning
	default:
		r.Outcome = OutcomeSuccess
	}
}

// finish records the end time and derives the outcome.
func (r *Report) finish() {
	r.End = time.Now()
	r.deriveOutcome()
}

// Duration is the wall time of the build.
func (r *Report) Duration() time.Duration { return r.End.Sub(r.Start) }

// EmittedTotal sums Emitted over all classes.
func (r *Report) EmittedTotal() int {
	n := 0
	for _, c := range r.Emitted {
		n += c
	}
	return n
}

// Summary returns a human readable one-line summary.
func (r *Report) Summary() string {
	return fmt.Sprintf("build=%s outcome=%s mode=%s files=%d routed=%d unmatched=%d entries=%d chunks=%d emitted=%d errors=%d warnings=%d duration=%s",
		shortID(r.BuildID), r.Outcome, r.Mode, r.Files, r.Routed, r.Unmatched, r.Entries, r.Chunks,
		r.EmittedTotal(), len(r.Errors), len(r.Warnings), r.Duration().Truncate(time.Millisecond))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// ReportSerializable is the JSON form of Report.
type ReportSerializable struct {
	SchemaVersion   int                   `json:"schema_version"`
	BuildID         string                `json:"build_id"`
	Mode            string                `json:"mode"`
	Production      bool                  `json:"production"`
	Minify          bool                  `json:"minify"`
	Source          *sourceinfo.Info      `json:"source,omitempty"`
	Start           time.Time             `json:"start"`
	End             time.Time             `json:"end"`
	DurationMS      int64                 `json:"duration_ms"`
	Files           int                   `json:"files"`
	Routed          int                   `json:"routed"`
	Unmatched       int                   `json:"unmatched"`
	Entries         int                   `json:"entries"`
	Chunks          int                   `json:"chunks"`
	Emitted         map[string]int        `json:"emitted"`
	Plugins         []string              `json:"plugins"`
	Errors          []string              `json:"errors"`
	Warnings        []string              `json:"warnings"`
	StageDurations  map[string]int64      `json:"stage_durations_ms"`
	StageErrorKinds map[string]string     `json:"stage_error_kinds"`
	StageCounts     map[string]StageCount `json:"stage_counts"`
	Outcome         string                `json:"outcome"`
}

// sanitizedCopy converts errors and typed keys into JSON friendly values.
func (r *Report) sanitizedCopy() *ReportSerializable {
	s := &ReportSerializable{
		SchemaVersion:   ReportSchemaVersion,
		BuildID:         r.BuildID,
		Mode:            string(r.Mode),
		Production:      r.Production,
		Minify:          r.Minify,
		Source:          r.Source,
		Start:           r.Start,
		End:             r.End,
		DurationMS:      r.Duration().Milliseconds(),
		Files:           r.Files,
		Routed:          r.Routed,
		Unmatched:       r.Unmatched,
		Entries:         r.Entries,
		Chunks:          r.Chunks,
		Emitted:         r.Emitted,
		Plugins:         append([]string{}, r.Plugins...),
		Errors:          make([]string, len(r.Errors)),
		Warnings:        make([]string, len(r.Warnings)),
		StageDurations:  make(map[string]int64, len(r.StageDurations)),
		StageErrorKinds: make(map[string]string, len(r.StageErrorKinds)),
		StageCounts:     make(map[string]StageCount, len(r.StageCounts)),
		Outcome:         string(r.Outcome),
	}
	for i, e := range r.Errors {
		s.Errors[i] = e.Error()
	}
	for i, w := range r.Warnings {
		s.Warnings[i] = w.Error()
	}
	for k, v := range r.StageDurations {
		s.StageDurations[k] = v.Milliseconds()
	}
	for k, v := range r.StageErrorKinds {
		s.StageErrorKinds[string(k)] = string(v)
	}
	for k, v := range r.StageCounts {
		s.StageCounts[string(k)] = v
	}
	return s
}

// textSummary renders the multi-line summary written next to the JSON report.
func (r *Report) textSummary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Build: %s\n", r.BuildID)
	fmt.Fprintf(&b, "Outcome: %s\n", r.Outcome)
	fmt.Fprintf(&b, "Mode: %s (production=%t minify=%t)\n", r.Mode, r.Production, r.Minify)
	if r.Source != nil {
		fmt.Fprintf(&b, "Source: %s", r.Source.Short())
		if r.Source.Dirty {
			b.WriteString(" (dirty)")
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Files: %d routed, %d unmatched\n", r.Routed, r.Unmatched)
	fmt.Fprintf(&b, "Bundles: %d entries, %d style chunks\n", r.Entries, r.Chunks)

	classes := make([]string, 0, len(r.Emitted))
	for c := range r.Emitted {
		classes = append(classes, c)
	}
	sort.Strings(classes)
	for _, c := range classes {
		fmt.Fprintf(&b, "Emitted %s: %d\n", c, r.Emitted[c])
	}

	for _, st := range pipeline() {
		d, ok := r.StageDurations[string(st.Name)]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "Stage %s: %s", st.Name, d.Truncate(time.Microsecond))
		if kind, ok := r.StageErrorKinds[st.Name]; ok {
			fmt.Fprintf(&b, " [%s]", kind)
		}
		b.WriteString("\n")
	}
	for _, e := range r.Errors {
		fmt.Fprintf(&b, "Error: %v\n", e)
	}
	for _, w := range r.Warnings {
		fmt.Fprintf(&b, "Warning: %v\n", w)
	}
	return b.String()
}

// Persist writes build-report.json and build-report.txt atomically into dir.
func (r *Report) Persist(dir string) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("ensure report dir: %w", err)
	}
	jsonPath := filepath.Join(dir, "build-report.json")
	tmpJSON := jsonPath + ".tmp"
	data, err := json.MarshalIndent(r.sanitizedCopy(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(tmpJSON, data, 0o600); err != nil {
		return fmt.Errorf("write temp report json: %w", err)
	}
	if err := os.Rename(tmpJSON, jsonPath); err != nil {
		return fmt.Errorf("atomic rename report json: %w", err)
	}

	summaryPath := filepath.Join(dir, "build-report.txt")
	tmpTxt := summaryPath + ".tmp"
	if err := os.WriteFile(tmpTxt, []byte(r.textSummary()), 0o600); err != nil {
		return fmt.Errorf("write temp summary: %w", err)
	}
	if err := os.Rename(tmpTxt, summaryPath); err != nil {
		return fmt.Errorf("atomic rename summary: %w", err)
	}
	return nil
}
