package observability

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// NewMetrics builds a private registry, so concurrent calls must not
// collide on registration.
func TestNewMetricsConcurrency(t *testing.T) {
	t.Parallel()

	const numGoroutines = 20

	var wg sync.WaitGroup
	for range numGoroutines {
		wg.Go(func() {
			m, err := NewMetrics()
			assert.NoError(t, err)
			if assert.NotNil(t, m) {
				assert.NotNil(t, m.Registry())
				assert.NotNil(t, m.Dispatch)
			}
		})
	}
	wg.Wait()
}

func TestEndpointServesDispatchMetrics(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)
	m.Dispatch.IncrementDispatchTotal()

	e := NewEndpoint("127.0.0.1:0", m, nil)
	assert.Same(t, m, e.GetMetrics())

	rec := httptest.NewRecorder()
	e.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pushcore_dispatch_total 1")
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestEndpointStartAndShutdown(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)

	e := NewEndpoint("127.0.0.1:0", m, nil)
	quit := make(chan struct{})
	var wg sync.WaitGroup
	e.Start(&wg, quit)

	close(quit)
	wg.Wait()
}
