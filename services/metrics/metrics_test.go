package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMiddleware(t *testing.T) {
	m := New("test")
	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/assignments/:id", func(c echo.Context) error {
		if c.Param("id") == "missing" {
			return echo.NewHTTPError(http.StatusNotFound)
		}
		return c.NoContent(http.StatusOK)
	})

	for _, path := range []string{"/assignments/1", "/assignments/2", "/assignments/missing"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, float64(2), testutil.ToFloat64(m.requests.WithLabelValues("/assignments/:id", http.MethodGet, "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.requests.WithLabelValues("/assignments/:id", http.MethodGet, "404")))
}

func TestCounters(t *testing.T) {
	m := New("test")
	m.UploadDone("post-image", nil)
	m.UploadDone("post-image", errors.New("boom"))
	m.LoginDone(false)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.uploads.WithLabelValues("post-image", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.uploads.WithLabelValues("post-image", "error")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.logins.WithLabelValues("failed")))
}

func TestHandler(t *testing.T) {
	m := New("test")
	m.LoginDone(true)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `test_logins_total{result="ok"} 1`)
}
