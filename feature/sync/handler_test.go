package sync

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"asset-sync/core/reconcile"
	"asset-sync/core/storage/mocks"

	"github.com/gofiber/fiber/v2"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubEngine returns a fixed outcome.
type stubEngine struct {
	plan   *reconcile.Plan
	report *reconcile.Report
	dryRun bool
}

func (s *stubEngine) SynchronizeWithPlan(_ context.Context, project string, dryRun bool) (*reconcile.Plan, *reconcile.Report) {
	s.dryRun = dryRun
	r := *s.report
	r.Project = project
	r.DryRun = dryRun
	return s.plan, &r
}

func newTestApp(svc *Service) *fiber.App {
	app := fiber.New()
	NewHandler(svc).RegisterRoutes(app)
	return app
}

func decode(t *testing.T, body io.Reader, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(body).Decode(v))
}

func TestHandleSync(t *testing.T) {
	tests := []struct {
		name     string
		plan     *reconcile.Plan
		report   reconcile.Report
		query    string
		wantCode int
		wantDry  bool
	}{
		{"Success", &reconcile.Plan{}, reconcile.Report{Success: true}, "", fiber.StatusOK, false},
		{"DryRun", &reconcile.Plan{}, reconcile.Report{Success: true}, "?dry_run=true", fiber.StatusOK, true},
		{"Ignored", &reconcile.Plan{}, reconcile.Report{Message: reconcile.MsgProjectIgnored}, "", fiber.StatusOK, false},
		{"Locked", nil, reconcile.Report{Message: "failed to acquire lock for project Film"}, "", fiber.StatusConflict, false},
		{"Failed", &reconcile.Plan{}, reconcile.Report{Message: "synchronization failed: boom"}, "", fiber.StatusInternalServerError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := tt.report
			engine := &stubEngine{plan: tt.plan, report: &report}
			app := newTestApp(NewService(engine, nil, nil, Options{}, zap.NewNop()))

			resp, err := app.Test(httptest.NewRequest("POST", "/sync/Film"+tt.query, nil))
			require.NoError(t, err)
			assert.Equal(t, tt.wantCode, resp.StatusCode)
			assert.Equal(t, tt.wantDry, engine.dryRun)

			var body runResponse
			decode(t, resp.Body, &body)
			require.NotNil(t, body.Report)
			assert.Equal(t, "Film", body.Report.Project)
		})
	}
}

func TestHandleSync_ReturnsPlanLines(t *testing.T) {
	f := newFixture(t)
	app := newTestApp(f.service(nil, Options{}))

	resp, err := app.Test(httptest.NewRequest("POST", "/sync/Film?dry_run=true", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body runResponse
	decode(t, resp.Body, &body)
	assert.True(t, body.Report.DryRun)
	assert.NotEmpty(t, body.Plan)

	records, err := f.store.FindByProject(context.Background(), "Film")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestHandleLatestReport(t *testing.T) {
	t.Run("Found", func(t *testing.T) {
		client := new(mocks.Client)
		client.On("GetObject", mock.Anything, "reports", "reports/Film/latest.json", mock.Anything).
			Return(io.NopCloser(strings.NewReader(`{"project":"Film","success":true}`)), nil)
		app := newTestApp(NewService(nil, nil, client, Options{Bucket: "reports"}, nil))

		resp, err := app.Test(httptest.NewRequest("GET", "/sync/Film/report", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)

		var report reconcile.Report
		decode(t, resp.Body, &report)
		assert.Equal(t, "Film", report.Project)
	})

	t.Run("NotFound", func(t *testing.T) {
		client := new(mocks.Client)
		client.On("GetObject", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(nil, minio.ErrorResponse{Code: "NoSuchKey"})
		app := newTestApp(NewService(nil, nil, client, Options{Bucket: "reports"}, nil))

		resp, err := app.Test(httptest.NewRequest("GET", "/sync/Film/report", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	})

	t.Run("StorageError", func(t *testing.T) {
		client := new(mocks.Client)
		client.On("GetObject", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(nil, errors.New("connection refused"))
		app := newTestApp(NewService(nil, nil, client, Options{Bucket: "reports"}, nil))

		resp, err := app.Test(httptest.NewRequest("GET", "/sync/Film/report", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	})
}

func TestHandleReportHistory(t *testing.T) {
	client := new(mocks.Client)
	listed := make(chan minio.ObjectInfo, 3)
	listed <- minio.ObjectInfo{Key: "reports/Film/b.json"}
	listed <- minio.ObjectInfo{Key: "reports/Film/latest.json"}
	listed <- minio.ObjectInfo{Key: "reports/Film/a.json"}
	close(listed)
	client.On("ListObjects", mock.Anything, "reports", mock.Anything).Return((<-chan minio.ObjectInfo)(listed))
	app := newTestApp(NewService(nil, nil, client, Options{Bucket: "reports"}, nil))

	resp, err := app.Test(httptest.NewRequest("GET", "/sync/Film/reports", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Reports []string `json:"reports"`
	}
	decode(t, resp.Body, &body)
	assert.Equal(t, []string{"reports/Film/a.json", "reports/Film/b.json"}, body.Reports)
}

func TestHandleRecordsAndDependents(t *testing.T) {
	f := newFixture(t)
	svc := f.service(nil, Options{})
	app := newTestApp(svc)

	_, report := svc.Run(context.Background(), "Film", false)
	require.True(t, report.Success)

	resp, err := app.Test(httptest.NewRequest("GET", "/sync/Film/records", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var body struct {
		Count   int                           `json:"count"`
		Records []reconcile.DestinationRecord `json:"records"`
	}
	decode(t, resp.Body, &body)
	assert.Equal(t, 3, body.Count)

	resp, err = app.Test(httptest.NewRequest("GET", "/sync/Film/records?archived=true", nil))
	require.NoError(t, err)
	decode(t, resp.Body, &body)
	assert.Equal(t, 0, body.Count)

	sh := f.recordByName(t, "sh010")
	post := func(id, payload string) int {
		req := httptest.NewRequest("POST", "/sync/Film/records/"+id+"/dependents", strings.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp.StatusCode
	}
	assert.Equal(t, fiber.StatusCreated, post(sh.ID, `{"kind":"product","name":"renderMain"}`))
	assert.Equal(t, fiber.StatusBadRequest, post(sh.ID, `{"kind":"product"}`))
	assert.Equal(t, fiber.StatusNotFound, post("missing", `{"kind":"product","name":"x"}`))

	deps, err := f.store.FindDependents(context.Background(), "Film", []string{sh.ID})
	require.NoError(t, err)
	assert.Contains(t, deps, sh.ID)
}

func TestLoader(t *testing.T) {
	feature := NewFeature(&stubEngine{}, nil, nil, Options{}, zap.NewNop())

	assert.Equal(t, "sync", feature.Name())
	assert.True(t, feature.IsEnabled())
	assert.NotNil(t, feature.Service())
	assert.NoError(t, feature.Load(fiber.New()))
}
