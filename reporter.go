package aegisx

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
)

// Client error report classification.
const (
	ReportTypeHTTP    = "http"
	ReportTypeRuntime = "runtime"
	ReportTypeGeneric = "generic"
)

// defaultQueueLimit bounds the in-memory report queue; the oldest
// reports are dropped first once it fills.
const defaultQueueLimit = 100

// ErrorReport is one client-side failure in the shape the monitoring
// endpoint ingests.
type ErrorReport struct {
	Timestamp     time.Time      `json:"timestamp"`
	Level         string         `json:"level"`
	Type          string         `json:"type"`
	Message       string         `json:"message"`
	Stack         string         `json:"stack,omitempty"`
	URL           string         `json:"url,omitempty"`
	Status        int            `json:"status,omitempty"`
	UserID        string         `json:"userId,omitempty"`
	CorrelationID string         `json:"correlationId,omitempty"`
	Context       map[string]any `json:"context,omitempty"`
}

// errorReportBatch is the request body for the monitoring endpoint.
type errorReportBatch struct {
	Errors []ErrorReport `json:"errors"`
}

// Notifier surfaces user-facing notices (the toast analog). The
// reporter uses it for permission-denied failures, which users can act
// on; everything else is only logged and shipped.
type Notifier interface {
	Notify(level, message string)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(level, message string)

func (f NotifierFunc) Notify(level, message string) {
	if f != nil {
		f(level, message)
	}
}

// ErrorReporter collects unexpected client-side failures and ships
// them in batches to the monitoring endpoint. Reporting never blocks
// or fails the caller: a failed shipment parks the batch in the
// durable state store and a later Flush retries it.
type ErrorReporter struct {
	httpClient *http.Client
	cfg        Config
	state      StateStore
	session    SessionReader
	logger     Logger
	notifier   Notifier
	now        func() time.Time
	limit      int

	mu    sync.Mutex
	queue []ErrorReport
}

// ReporterOption customizes ErrorReporter construction.
type ReporterOption func(*ErrorReporter)

// WithReporterHTTPClient sets the HTTP client used for shipping.
func WithReporterHTTPClient(httpClient *http.Client) ReporterOption {
	return func(r *ErrorReporter) {
		if httpClient != nil {
			r.httpClient = httpClient
		}
	}
}

// WithReporterStateStore sets the store used to park unshipped
// batches.
func WithReporterStateStore(store StateStore) ReporterOption {
	return func(r *ErrorReporter) {
		if store != nil {
			r.state = store
		}
	}
}

// WithReporterSession attaches the session so reports carry the
// current user id.
func WithReporterSession(session SessionReader) ReporterOption {
	return func(r *ErrorReporter) {
		if session != nil {
			r.session = session
		}
	}
}

// WithReporterLogger overrides the default logger.
func WithReporterLogger(logger Logger) ReporterOption {
	return func(r *ErrorReporter) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithReporterNotifier wires the user-notice hook.
func WithReporterNotifier(notifier Notifier) ReporterOption {
	return func(r *ErrorReporter) {
		if notifier != nil {
			r.notifier = notifier
		}
	}
}

// WithReporterClock injects a custom clock.
func WithReporterClock(clock func() time.Time) ReporterOption {
	return func(r *ErrorReporter) {
		if clock != nil {
			r.now = clock
		}
	}
}

// WithReporterQueueLimit bounds the in-memory queue.
func WithReporterQueueLimit(limit int) ReporterOption {
	return func(r *ErrorReporter) {
		if limit > 0 {
			r.limit = limit
		}
	}
}

// NewErrorReporter returns a reporter bound to cfg.
func NewErrorReporter(cfg Config, opts ...ReporterOption) *ErrorReporter {
	r := &ErrorReporter{
		httpClient: http.DefaultClient,
		cfg:        cfg,
		state:      NewMemoryStateStore(),
		logger:     defLogger{},
		notifier:   NotifierFunc(nil),
		now:        time.Now,
		limit:      defaultQueueLimit,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}

	return r
}

// Report classifies err and enqueues it. HTTP-shaped failures (rich
// errors carrying a status) map to the http type, with 403 surfaced
// through the notifier; rich errors without a status are runtime;
// anything else is generic. Report never returns an error.
func (r *ErrorReporter) Report(ctx context.Context, err error, errCtx map[string]any) {
	if err == nil {
		return
	}

	report := r.classify(ctx, err)
	report.Context = errCtx

	if report.Status == http.StatusForbidden {
		r.notifier.Notify("warn", "You don't have permission to perform this action.")
	}

	r.logger.Debug("client error captured: %s", print.MaybePrettyJSON(report))

	r.enqueue(report)
}

// Flush ships the queued reports to the monitoring endpoint. On
// success any previously parked batch is discarded; on failure the
// whole batch is parked in the state store for a later attempt.
func (r *ErrorReporter) Flush(ctx context.Context) error {
	r.mu.Lock()
	batch := r.queue
	r.queue = nil
	r.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	if err := r.ship(ctx, batch); err != nil {
		r.logger.Warn("unable to ship %d client error report(s), parking batch: %v", len(batch), err)
		r.park(ctx, batch)
		return err
	}

	if err := r.state.Delete(ctx, StateKeyPendingReports); err != nil {
		r.logger.Warn("unable to clear parked error reports: %v", err)
	}

	return nil
}

// Restore reloads a previously parked batch into the queue, typically
// at startup before the first Flush.
func (r *ErrorReporter) Restore(ctx context.Context) error {
	raw, err := r.state.Get(ctx, StateKeyPendingReports)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil
		}
		return err
	}

	parked := []ErrorReport{}
	if err := json.Unmarshal([]byte(raw), &parked); err != nil {
		// A corrupt batch is not worth failing startup over.
		r.logger.Warn("discarding unreadable parked error reports: %v", err)
		if derr := r.state.Delete(ctx, StateKeyPendingReports); derr != nil {
			r.logger.Warn("unable to clear parked error reports: %v", derr)
		}
		return nil
	}

	r.mu.Lock()
	r.queue = append(parked, r.queue...)
	if len(r.queue) > r.limit {
		r.queue = r.queue[len(r.queue)-r.limit:]
	}
	r.mu.Unlock()

	return nil
}

// Pending reports the number of queued, unshipped reports.
func (r *ErrorReporter) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}

func (r *ErrorReporter) classify(ctx context.Context, err error) ErrorReport {
	report := ErrorReport{
		Timestamp: r.now(),
		Level:     "error",
		Type:      ReportTypeGeneric,
		Message:   err.Error(),
	}

	if correlationID, ok := CorrelationIDFromContext(ctx); ok {
		report.CorrelationID = correlationID
	}

	if r.session != nil {
		if user := r.session.CurrentUser(); user != nil {
			report.UserID = user.ID
		}
	}

	var refreshErr *RefreshFailedError
	if goerrors.As(err, &refreshErr) {
		report.Type = ReportTypeHTTP
		report.Status = http.StatusUnauthorized
		return report
	}

	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return report
	}

	report.Type = ReportTypeRuntime
	if richErr.Category == goerrors.CategoryValidation || richErr.Category == goerrors.CategoryBadInput {
		report.Level = "warn"
	}

	if richErr.Metadata == nil {
		return report
	}

	if status, ok := richErr.Metadata["status"].(int); ok {
		report.Type = ReportTypeHTTP
		report.Status = status
	}
	if url, ok := richErr.Metadata["url"].(string); ok {
		report.URL = url
	}

	return report
}

func (r *ErrorReporter) enqueue(report ErrorReport) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.queue = append(r.queue, report)
	if len(r.queue) > r.limit {
		r.queue = r.queue[len(r.queue)-r.limit:]
	}
}

func (r *ErrorReporter) ship(ctx context.Context, batch []ErrorReport) error {
	encoded, err := json.Marshal(errorReportBatch{Errors: batch})
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "unable to encode error reports")
	}

	url := r.cfg.GetAPIBaseURL() + r.cfg.GetErrorLogPath()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "unable to build report request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "report shipment failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return goerrors.New("monitoring endpoint returned non-OK status", goerrors.CategoryOperation).
			WithMetadata(map[string]any{"status": resp.StatusCode})
	}

	return nil
}

func (r *ErrorReporter) park(ctx context.Context, batch []ErrorReport) {
	encoded, err := json.Marshal(batch)
	if err != nil {
		r.logger.Warn("unable to encode parked error reports: %v", err)
		return
	}

	if err := r.state.Set(ctx, StateKeyPendingReports, string(encoded)); err != nil {
		r.logger.Warn("unable to park error reports: %v", err)
	}
}
