// Package ingest implements the backend's admission pipeline: caller
// authentication, per-client authorization, required-field validation, and
// recording of uploaded documents as tasks.
//
// The package is transport-agnostic. internal/api maps its typed errors onto
// HTTP status codes.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/tallybridge/internal/metrics"
	"github.com/roach88/tallybridge/internal/model"
	"github.com/roach88/tallybridge/internal/store"
)

// Store is the persistence the service needs. Implemented by *store.Store.
type Store interface {
	ClientByToken(ctx context.Context, token string) (model.Client, error)
	UpsertClient(ctx context.Context, clientID, companyName string) (model.Client, error)
	ListClients(ctx context.Context) ([]model.Client, error)
	UpdateSync(ctx context.Context, clientID string, lastSync time.Time, tallyAccessOK bool) error
	RecordUpload(ctx context.Context, clientID, companyName string, task model.Task) (model.Task, error)
	PendingTasks(ctx context.Context, clientID string) ([]model.Task, error)
	RejectedTasks(ctx context.Context) ([]model.Task, error)
}

// UploadRequest is one uploaded document.
type UploadRequest struct {
	ClientID    string
	DataType    model.DataType // empty means json
	CompanyName string
	Payload     string
}

// UploadResult is returned to the uploader.
type UploadResult struct {
	TaskID        int64            `json:"task_id"`
	Status        model.TaskStatus `json:"status"`
	MissingFields string           `json:"missing_fields,omitempty"`
}

// SyncReport is a client's periodic status report.
type SyncReport struct {
	ClientID      string `json:"client_id"`
	LastSync      string `json:"last_sync"`
	TallyAccessOK bool   `json:"tally_access_ok"`
}

// DashboardClient is one row of the admin dashboard.
type DashboardClient struct {
	model.Client
	Rejected []string `json:"rejected"`
}

// Dashboard lists every client with the missing-field lists of its rejected
// uploads. Tokens are never included.
type Dashboard struct {
	Clients []DashboardClient `json:"clients"`
}

// Service is the admission pipeline.
//
// Thread-safety: Service is safe for concurrent use if its Store is.
type Service struct {
	store  Store
	schema *Schema
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the clock used when a sync report omits last_sync.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// NewService creates a Service backed by st and validating against schema.
func NewService(st Store, schema *Schema, opts ...Option) *Service {
	s := &Service{
		store:  st,
		schema: schema,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Authenticate resolves a bearer token to its client.
// Returns *AuthError (unauthenticated) for a missing or unknown token.
func (s *Service) Authenticate(ctx context.Context, token string) (model.Client, error) {
	if token == "" {
		return model.Client{}, &AuthError{Kind: AuthUnauthenticated, Reason: "missing token"}
	}

	client, err := s.store.ClientByToken(ctx, token)
	if errors.Is(err, store.ErrNotFound) {
		return model.Client{}, &AuthError{Kind: AuthUnauthenticated, Reason: "invalid token"}
	}
	if err != nil {
		return model.Client{}, fmt.Errorf("authenticate: %w", err)
	}
	return client, nil
}

// Upload admits one document for caller.
//
// Order of checks: the body's client_id must match the caller (forbidden
// otherwise), then the payload is validated. Only after both pass is the
// client upserted and the task recorded, in one transaction.
func (s *Service) Upload(ctx context.Context, caller model.Client, req UploadRequest) (UploadResult, error) {
	if req.ClientID != caller.ClientID {
		return UploadResult{}, &AuthError{Kind: AuthForbidden, Reason: "token does not match client"}
	}

	dataType := req.DataType
	if dataType == "" {
		dataType = model.DataTypeJSON
	}

	admission, err := s.schema.Admit(dataType, req.Payload)
	if err != nil {
		return UploadResult{}, err
	}

	task, err := s.store.RecordUpload(ctx, caller.ClientID, normalizeCompany(req.CompanyName), model.Task{
		VoucherData:   req.Payload,
		DataType:      dataType,
		Status:        admission.Status,
		MissingFields: admission.MissingFields,
	})
	if err != nil {
		return UploadResult{}, fmt.Errorf("upload: %w", err)
	}

	metrics.TaskAdmissionsTotal.WithLabelValues(string(task.Status)).Inc()
	s.logger.Info("task recorded",
		"client_id", task.ClientID,
		"task_id", task.ID,
		"status", task.Status,
		"missing_fields", task.MissingFields,
	)

	return UploadResult{TaskID: task.ID, Status: task.Status, MissingFields: task.MissingFields}, nil
}

// PendingTasks returns caller's pending tasks, oldest first.
func (s *Service) PendingTasks(ctx context.Context, caller model.Client) ([]model.Task, error) {
	tasks, err := s.store.PendingTasks(ctx, caller.ClientID)
	if err != nil {
		return nil, fmt.Errorf("pending tasks: %w", err)
	}
	return tasks, nil
}

// ReportSync records a client's sync report.
//
// An empty client_id means the caller. An empty last_sync means now.
// last_tally_access moves only when the report says the terminal answered.
func (s *Service) ReportSync(ctx context.Context, caller model.Client, report SyncReport) error {
	clientID := report.ClientID
	if clientID == "" {
		clientID = caller.ClientID
	}
	if clientID != caller.ClientID {
		return &AuthError{Kind: AuthForbidden, Reason: "token does not match client"}
	}

	lastSync := s.now()
	if report.LastSync != "" {
		t, err := parseTimestamp(report.LastSync)
		if err != nil {
			return &ValidationError{Field: "last_sync", Reason: err.Error()}
		}
		lastSync = t
	}

	if err := s.store.UpdateSync(ctx, clientID, lastSync, report.TallyAccessOK); err != nil {
		return fmt.Errorf("report sync: %w", err)
	}

	s.logger.Info("sync reported", "client_id", clientID, "tally_access_ok", report.TallyAccessOK)
	return nil
}

// Register issues a token for a new client, or returns the existing client
// unchanged apart from a non-empty company name.
func (s *Service) Register(ctx context.Context, clientID, companyName string) (model.Client, error) {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return model.Client{}, &ValidationError{Field: "client_id", Reason: "required"}
	}

	client, err := s.store.UpsertClient(ctx, clientID, normalizeCompany(companyName))
	if err != nil {
		return model.Client{}, fmt.Errorf("register: %w", err)
	}
	s.logger.Info("client registered", "client_id", client.ClientID)
	return client, nil
}

// Clients returns every registered client.
func (s *Service) Clients(ctx context.Context) ([]model.Client, error) {
	clients, err := s.store.ListClients(ctx)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	return clients, nil
}

// Dashboard builds the admin overview.
func (s *Service) Dashboard(ctx context.Context) (Dashboard, error) {
	clients, err := s.store.ListClients(ctx)
	if err != nil {
		return Dashboard{}, fmt.Errorf("dashboard: %w", err)
	}
	rejected, err := s.store.RejectedTasks(ctx)
	if err != nil {
		return Dashboard{}, fmt.Errorf("dashboard: %w", err)
	}

	byClient := make(map[string][]string)
	for _, t := range rejected {
		byClient[t.ClientID] = append(byClient[t.ClientID], t.MissingFields)
	}

	d := Dashboard{Clients: make([]DashboardClient, 0, len(clients))}
	for _, c := range clients {
		r := byClient[c.ClientID]
		if r == nil {
			r = []string{}
		}
		d.Clients = append(d.Clients, DashboardClient{Client: c, Rejected: r})
	}
	return d, nil
}

func normalizeCompany(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

// Layouts accepted for last_sync. A timestamp without a zone is read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}
