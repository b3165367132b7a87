// Package syncagent exports data from the accounting terminal and uploads it
// to the ingestion backend.
//
// For each configured type the agent reads a request document
// <requests_dir>/<type>.xml, posts it to the terminal, and uploads the
// terminal's answer as an xml task. It finishes by reporting whether the
// terminal was reachable. The request documents are opaque to the agent.
package syncagent

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/roach88/tallybridge/internal/ingest"
	"github.com/roach88/tallybridge/internal/model"
	"github.com/roach88/tallybridge/internal/terminal"
)

// Terminal is the part of the terminal client the agent uses.
type Terminal interface {
	Reachable(ctx context.Context) (bool, error)
	Send(ctx context.Context, payload string) (string, error)
}

// Uploader is the part of the backend client the agent uses.
type Uploader interface {
	Upload(ctx context.Context, dataType model.DataType, payload string) (ingest.UploadResult, error)
	ReportSync(ctx context.Context, lastSync time.Time, tallyAccessOK bool) error
}

// Type names map to file names, so they are restricted.
var typeName = regexp.MustCompile(`^[a-z0-9_]+$`)

// TypeResult is what happened to one export type.
type TypeResult struct {
	Type    string           `json:"type"`
	TaskID  int64            `json:"task_id,omitempty"`
	Status  model.TaskStatus `json:"status,omitempty"`
	Skipped string           `json:"skipped,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// Report summarises one sync run.
type Report struct {
	SyncedAt      time.Time    `json:"synced_at"`
	TallyAccessOK bool         `json:"tally_access_ok"`
	Results       []TypeResult `json:"results"`
}

// Agent runs sync passes.
type Agent struct {
	term        Terminal
	backend     Uploader
	requestsDir string
	types       []string
	now         func() time.Time
	logger      *slog.Logger
}

// Option configures an Agent.
type Option func(*Agent)

// WithClock overrides the clock used for the reported sync time.
func WithClock(now func() time.Time) Option {
	return func(a *Agent) {
		a.now = now
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(a *Agent) {
		a.logger = l
	}
}

// New creates an agent exporting types using documents from requestsDir.
func New(term Terminal, backend Uploader, requestsDir string, types []string, opts ...Option) *Agent {
	a := &Agent{
		term:        term,
		backend:     backend,
		requestsDir: requestsDir,
		types:       append([]string(nil), types...),
		now:         time.Now,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Sync runs one pass.
//
// Per-type problems (unknown type, missing request document, terminal
// failure) are recorded in the report and the pass continues. A backend
// failure or an endpoint configuration error aborts the pass.
func (a *Agent) Sync(ctx context.Context) (Report, error) {
	report := Report{Results: []TypeResult{}}

	ok, err := a.term.Reachable(ctx)
	if err != nil {
		return report, fmt.Errorf("sync: probe: %w", err)
	}
	report.TallyAccessOK = ok

	if ok {
		for _, t := range a.types {
			res, err := a.syncType(ctx, t)
			if err != nil {
				return report, err
			}
			report.Results = append(report.Results, res)
		}
	} else {
		a.logger.Warn("terminal unreachable, nothing exported")
	}

	report.SyncedAt = a.now()
	if err := a.backend.ReportSync(ctx, report.SyncedAt, report.TallyAccessOK); err != nil {
		return report, fmt.Errorf("sync: report status: %w", err)
	}
	return report, nil
}

func (a *Agent) syncType(ctx context.Context, t string) (TypeResult, error) {
	res := TypeResult{Type: t}

	if !typeName.MatchString(t) {
		a.logger.Warn("skipping invalid sync type", "type", t)
		res.Skipped = "invalid type name"
		return res, nil
	}

	request, err := os.ReadFile(filepath.Join(a.requestsDir, t+".xml"))
	if errors.Is(err, fs.ErrNotExist) {
		a.logger.Warn("skipping sync type without request document", "type", t)
		res.Skipped = "no request document"
		return res, nil
	}
	if err != nil {
		return res, fmt.Errorf("sync %s: read request: %w", t, err)
	}

	response, err := a.term.Send(ctx, string(request))
	if err != nil {
		if !terminal.IsRecoverable(err) {
			return res, fmt.Errorf("sync %s: %w", t, err)
		}
		a.logger.Warn("terminal export failed", "type", t, "error", err)
		res.Error = err.Error()
		return res, nil
	}

	uploaded, err := a.backend.Upload(ctx, model.DataTypeXML, response)
	if err != nil {
		return res, fmt.Errorf("sync %s: upload: %w", t, err)
	}

	a.logger.Info("exported", "type", t, "task_id", uploaded.TaskID)
	res.TaskID = uploaded.TaskID
	res.Status = uploaded.Status
	return res, nil
}
