package build

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/blogbuilder/internal/linkverify"
)

// ReportFile is the build report written into the output directory.
const ReportFile = "build-report.json"

// Outcome is the overall result of a build.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeWarning  Outcome = "warning"
	OutcomeFailed   Outcome = "failed"
	OutcomeCanceled Outcome = "canceled"
)

// Report summarizes one build run.
type Report struct {
	SchemaVersion int       `json:"schema_version"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	Outcome       Outcome   `json:"outcome"`

	Posts         int      `json:"posts"`
	RenderedPages int      `json:"rendered_pages"`
	SkippedPages  int      `json:"skipped_pages"`
	RemovedPages  []string `json:"removed_pages,omitempty"`
	SitemapURLs   int      `json:"sitemap_urls"`

	// RenderSnapshot is the render settings hash the pages were built with.
	RenderSnapshot string `json:"render_snapshot,omitempty"`
	// Pages maps each slug with a page on disk to the fingerprint it was
	// rendered from. The next build diffs posts against it.
	Pages map[string]string `json:"pages,omitempty"`

	BrokenLinks []linkverify.BrokenLink `json:"broken_links,omitempty"`

	// StageDurations is keyed by stage name, in milliseconds.
	StageDurations map[string]int64  `json:"stage_durations_ms"`
	StageErrors    map[string]string `json:"stage_errors,omitempty"`
	Errors         []string          `json:"errors,omitempty"`
	Warnings       []string          `json:"warnings,omitempty"`
}

func newReport(start time.Time) *Report {
	return &Report{
		SchemaVersion:  1,
		Start:          start,
		Pages:          make(map[string]string),
		StageDurations: make(map[string]int64),
		StageErrors:    make(map[string]string),
	}
}

func (r *Report) addStageError(se *StageError) {
	r.StageErrors[string(se.Stage)] = string(se.Kind)
	if se.Kind == StageErrorWarning {
		r.Warnings = append(r.Warnings, se.Error())
		return
	}
	r.Errors = append(r.Errors, se.Error())
	if se.Kind == StageErrorCanceled {
		r.Outcome = OutcomeCanceled
	}
}

// finish stamps the end time and derives the outcome.
func (r *Report) finish(end time.Time) {
	r.End = end
	switch {
	case r.Outcome == OutcomeCanceled:
	case len(r.Errors) > 0:
		r.Outcome = OutcomeFailed
	case len(r.Warnings) > 0:
		r.Outcome = OutcomeWarning
	default:
		r.Outcome = OutcomeSuccess
	}
}

// Summary returns a single-line human summary.
func (r *Report) Summary() string {
	return fmt.Sprintf("posts=%d rendered=%d skipped=%d sitemap_urls=%d duration=%s outcome=%s",
		r.Posts, r.RenderedPages, r.SkippedPages, r.SitemapURLs,
		r.End.Sub(r.Start).Truncate(time.Millisecond), r.Outcome)
}

// Persist writes the report as JSON into root via temp file and rename.
func (r *Report) Persist(root string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report json: %w", err)
	}
	return writeFileAtomic(filepath.Join(root, ReportFile), data)
}

// readReport loads the report persisted in root by the last successful build.
func readReport(root string) (*Report, error) {
	data, err := os.ReadFile(filepath.Join(root, ReportFile))
	if err != nil {
		return nil, err
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode report json: %w", err)
	}
	return &r, nil
}

// writeFileAtomic writes data to a temp sibling of path and renames it into place.
func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure directory for %s: %w", path, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("atomic rename %s: %w", path, err)
	}
	return nil
}
