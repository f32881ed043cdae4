package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordOutput(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordOutput("babbage", OutcomeNormalized)
	m.RecordOutput("babbage", OutcomeNormalized)
	m.RecordOutput("byron", OutcomeFailed)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.outputsProcessed.WithLabelValues("babbage", OutcomeNormalized)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.outputsProcessed.WithLabelValues("byron", OutcomeFailed)))
}

func TestRecordRegistryLookup(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordRegistryLookup(3, 5*time.Millisecond, nil)
	m.RecordRegistryLookup(1, time.Millisecond, errors.New("down"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.registryLookups.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.registryLookups.WithLabelValues("error")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordOutput("mary", OutcomeSkipped)
	m.RecordDatum(DatumMissing)
	m.RecordRegistryLookup(1, time.Second, nil)
	m.RecordSinkWrite(1, nil)
	m.SetLastProcessedSlot(1)
}

func TestHandlerServesCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)
	m.SetLastProcessedSlot(4242)
	m.RecordDatum(DatumResolved)

	rec := httptest.NewRecorder()
	Handler(registry).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "cardano_last_processed_slot 4242"))
	assert.True(t, strings.Contains(body, `cardano_datum_resolutions_total{outcome="resolved"} 1`))
}
