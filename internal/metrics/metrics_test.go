package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0pancd04/rota-ai-desertation/pkg/travel"
)

func TestRecordRotaGeneration(t *testing.T) {
	before := testutil.ToFloat64(rotaGenerations.WithLabelValues("success"))
	createdBefore := testutil.ToFloat64(assignmentsCreated)

	RecordRotaGeneration(true, 2*time.Second, 12)

	assert.Equal(t, before+1, testutil.ToFloat64(rotaGenerations.WithLabelValues("success")))
	assert.Equal(t, createdBefore+12, testutil.ToFloat64(assignmentsCreated))
}

func TestRecordReassignment(t *testing.T) {
	updated := testutil.ToFloat64(reassignments.WithLabelValues("updated"))
	skipped := testutil.ToFloat64(reassignments.WithLabelValues("skipped"))

	RecordReassignment(5, 3)

	assert.Equal(t, updated+3, testutil.ToFloat64(reassignments.WithLabelValues("updated")))
	assert.Equal(t, skipped+2, testutil.ToFloat64(reassignments.WithLabelValues("skipped")))
}

func TestTravelLookupRecorder(t *testing.T) {
	before := testutil.ToFloat64(travelLookups.WithLabelValues(travel.SourceTable))

	tp := travel.NewTableProvider(nil).Set("A", "B", 7).WithRecorder(TravelLookupRecorder())
	_, err := tp.TravelTime(t.Context(), "A", "B", "")
	require.NoError(t, err)

	assert.Equal(t, before+1, testutil.ToFloat64(travelLookups.WithLabelValues(travel.SourceTable)))
}

func TestHandler(t *testing.T) {
	RecordRequestMetrics("GET", "/health", 200, 3*time.Millisecond)
	TaskStarted()
	TaskFinished()
	SetRotaQuality(0.25, 80)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, string(body), `rota_http_requests_total{method="GET",path="/health",status="200"}`)
	assert.Contains(t, string(body), "rota_visit_minutes_gini 0.25")
	assert.Contains(t, string(body), "rota_active_tasks 0")
}
