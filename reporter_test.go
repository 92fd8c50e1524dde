package aegisx_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	aegisx "github.com/aegisx/go-client"
	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReporterClassifiesHTTPErrors(t *testing.T) {
	reporter := aegisx.NewErrorReporter(testConfig("http://localhost:0"))

	err := goerrors.New("request failed", goerrors.CategoryOperation).
		WithMetadata(map[string]any{"status": 502, "url": "/api/users"})

	reporter.Report(context.Background(), err, nil)
	assert.Equal(t, 1, reporter.Pending())
}

func TestReporterNotifiesOnForbidden(t *testing.T) {
	notifier := &recordingNotifier{}
	reporter := aegisx.NewErrorReporter(testConfig("http://localhost:0"),
		aegisx.WithReporterNotifier(notifier),
	)

	forbidden := goerrors.New("request failed", goerrors.CategoryOperation).
		WithMetadata(map[string]any{"status": 403})
	reporter.Report(context.Background(), forbidden, nil)

	messages := notifier.Messages()
	require.Len(t, messages, 1)
	assert.Contains(t, messages[0], "permission")

	// Non-403 statuses stay quiet.
	failed := goerrors.New("request failed", goerrors.CategoryOperation).
		WithMetadata(map[string]any{"status": 500})
	reporter.Report(context.Background(), failed, nil)
	assert.Len(t, notifier.Messages(), 1)
}

func TestReporterIgnoresNilErrors(t *testing.T) {
	reporter := aegisx.NewErrorReporter(testConfig("http://localhost:0"))
	reporter.Report(context.Background(), nil, nil)
	assert.Zero(t, reporter.Pending())
}

func TestReporterFlushShipsBatch(t *testing.T) {
	var received atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/logs/client-errors", r.URL.Path)

		body := struct {
			Errors []aegisx.ErrorReport `json:"errors"`
		}{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		received.Store(int32(len(body.Errors)))

		w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	reporter := aegisx.NewErrorReporter(testConfig(srv.URL))
	ctx := context.Background()

	reporter.Report(ctx, goerrors.New("boom", goerrors.CategoryInternal), nil)
	reporter.Report(ctx, goerrors.New("bang", goerrors.CategoryInternal), nil)

	require.NoError(t, reporter.Flush(ctx))
	assert.Equal(t, int32(2), received.Load())
	assert.Zero(t, reporter.Pending())
}

func TestReporterFlushParksBatchOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	store := aegisx.NewMemoryStateStore()
	reporter := aegisx.NewErrorReporter(testConfig(srv.URL),
		aegisx.WithReporterStateStore(store),
	)
	ctx := context.Background()

	reporter.Report(ctx, goerrors.New("boom", goerrors.CategoryInternal), nil)
	require.Error(t, reporter.Flush(ctx))

	parked, err := store.Get(ctx, aegisx.StateKeyPendingReports)
	require.NoError(t, err)

	batch := []aegisx.ErrorReport{}
	require.NoError(t, json.Unmarshal([]byte(parked), &batch))
	require.Len(t, batch, 1)
	assert.Equal(t, "boom", batch[0].Message)
}

func TestReporterRestoreReloadsParkedBatch(t *testing.T) {
	var received atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := struct {
			Errors []aegisx.ErrorReport `json:"errors"`
		}{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		received.Store(int32(len(body.Errors)))
		w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	store := aegisx.NewMemoryStateStore()
	ctx := context.Background()

	parked, err := json.Marshal([]aegisx.ErrorReport{{Level: "error", Type: aegisx.ReportTypeGeneric, Message: "earlier crash"}})
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, aegisx.StateKeyPendingReports, string(parked)))

	reporter := aegisx.NewErrorReporter(testConfig(srv.URL),
		aegisx.WithReporterStateStore(store),
	)

	require.NoError(t, reporter.Restore(ctx))
	assert.Equal(t, 1, reporter.Pending())

	require.NoError(t, reporter.Flush(ctx))
	assert.Equal(t, int32(1), received.Load())

	// Shipment clears the parked copy too.
	_, err = store.Get(ctx, aegisx.StateKeyPendingReports)
	assert.ErrorIs(t, err, aegisx.ErrStateKeyNotFound)
}

func TestReporterRestoreDiscardsCorruptBatch(t *testing.T) {
	store := aegisx.NewMemoryStateStore()
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, aegisx.StateKeyPendingReports, "{{not json"))

	reporter := aegisx.NewErrorReporter(testConfig("http://localhost:0"),
		aegisx.WithReporterStateStore(store),
	)

	require.NoError(t, reporter.Restore(ctx))
	assert.Zero(t, reporter.Pending())

	_, err := store.Get(ctx, aegisx.StateKeyPendingReports)
	assert.ErrorIs(t, err, aegisx.ErrStateKeyNotFound)
}

func TestReporterQueueRespectsLimit(t *testing.T) {
	reporter := aegisx.NewErrorReporter(testConfig("http://localhost:0"),
		aegisx.WithReporterQueueLimit(3),
	)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		reporter.Report(ctx, goerrors.New("boom", goerrors.CategoryInternal), nil)
	}
	assert.Equal(t, 3, reporter.Pending())
}

func TestReporterAttachesSessionUser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := struct {
			Errors []aegisx.ErrorReport `json:"errors"`
		}{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Errors, 1)
		assert.Equal(t, "user-123", body.Errors[0].UserID)
		w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	reporter := aegisx.NewErrorReporter(testConfig(srv.URL),
		aegisx.WithReporterSession(&fakeSession{token: "tok", user: testUser()}),
	)
	ctx := context.Background()

	reporter.Report(ctx, goerrors.New("boom", goerrors.CategoryInternal), nil)
	require.NoError(t, reporter.Flush(ctx))
}
