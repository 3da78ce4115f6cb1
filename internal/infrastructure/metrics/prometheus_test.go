package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuandi/fulfillment/internal/core/domain"
)

func TestObserveOperation(t *testing.T) {
	p := NewPrometheus()

	p.ObserveOperation("create_order", 10*time.Millisecond, nil)
	p.ObserveOperation("create_order", 5*time.Millisecond, domain.ErrInsufficientStock)
	p.ObserveOperation("create_order", time.Millisecond, errors.New("db down"))

	assert.Equal(t, 1.0, testutil.ToFloat64(p.operationsTotal.WithLabelValues("create_order", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.operationsTotal.WithLabelValues("create_order", domain.CodeInsufficientStock)))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.operationsTotal.WithLabelValues("create_order", "internal")))
}

func TestSetIntegrity(t *testing.T) {
	p := NewPrometheus()

	p.SetIntegrity(domain.IntegrityReport{Inventory: true, Cashbook: false, Orders: true, Issues: []string{"cashbook: drift"}})

	assert.Equal(t, 1.0, testutil.ToFloat64(p.integrityStatus.WithLabelValues("inventory")))
	assert.Equal(t, 0.0, testutil.ToFloat64(p.integrityStatus.WithLabelValues("cashbook")))
	assert.Equal(t, 0.0, testutil.ToFloat64(p.integrityStatus.WithLabelValues("overall")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.integrityIssues))
}

func TestHandler_ExposesMetrics(t *testing.T) {
	p := NewPrometheus()
	p.LowStock("SKU-1")

	srv := httptest.NewServer(p.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `yuandi_low_stock_alerts_total{sku="SKU-1"} 1`)
}
