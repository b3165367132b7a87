package syncagent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/roach88/tallybridge/internal/ingest"
	"github.com/roach88/tallybridge/internal/model"
)

// BackendError is a non-2xx answer from the ingestion backend.
type BackendError struct {
	Route      string
	StatusCode int
	Message    string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend %s: status %d: %s", e.Route, e.StatusCode, e.Message)
}

// IsBackendError returns true if the error is a BackendError.
func IsBackendError(err error) bool {
	var be *BackendError
	return errors.As(err, &be)
}

// Backend is an authenticated client of the ingestion API.
//
// Thread-safety: Backend is safe for concurrent use.
type Backend struct {
	baseURL  string
	clientID string
	token    string
	http     *http.Client
}

// NewBackend creates a client for the API at baseURL acting as clientID.
// An empty token sends no Authorization header.
func NewBackend(baseURL, clientID, token string, timeout time.Duration) *Backend {
	return &Backend{
		baseURL:  strings.TrimRight(baseURL, "/"),
		clientID: clientID,
		token:    token,
		http:     &http.Client{Timeout: timeout},
	}
}

// Upload posts one document to /upload_voucher.
func (b *Backend) Upload(ctx context.Context, dataType model.DataType, payload string) (ingest.UploadResult, error) {
	form := url.Values{
		"client_id": {b.clientID},
		"data_type": {string(dataType)},
		"payload":   {payload},
	}

	var res ingest.UploadResult
	err := b.do(ctx, http.MethodPost, "/upload_voucher",
		"application/x-www-form-urlencoded", strings.NewReader(form.Encode()), &res)
	return res, err
}

// ReportSync posts to /sync_status.
func (b *Backend) ReportSync(ctx context.Context, lastSync time.Time, tallyAccessOK bool) error {
	body, err := json.Marshal(ingest.SyncReport{
		ClientID:      b.clientID,
		LastSync:      lastSync.UTC().Format(time.RFC3339Nano),
		TallyAccessOK: tallyAccessOK,
	})
	if err != nil {
		return fmt.Errorf("encode sync report: %w", err)
	}
	return b.do(ctx, http.MethodPost, "/sync_status", "application/json", strings.NewReader(string(body)), nil)
}

// PendingTasks fetches this client's pending tasks from /tasks.
func (b *Backend) PendingTasks(ctx context.Context) ([]model.Task, error) {
	tasks := []model.Task{}
	if err := b.do(ctx, http.MethodGet, "/tasks", "", nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (b *Backend) do(ctx context.Context, method, route, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+route, body)
	if err != nil {
		return fmt.Errorf("backend %s: %w", route, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if b.token != "" {
		req.Header.Set("Authorization", "Bearer "+b.token)
	}

	resp, err := b.http.Do(req)
	if err != nil {
		return fmt.Errorf("backend %s: %w", route, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return fmt.Errorf("backend %s: read response: %w", route, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			msg = apiErr.Error
		}
		return &BackendError{Route: route, StatusCode: resp.StatusCode, Message: msg}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("backend %s: decode response: %w", route, err)
	}
	return nil
}
