package logging

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_LevelFallback(t *testing.T) {
	var buf bytes.Buffer
	log := New("nonsense", &buf)

	log.Debug().Msg("hidden")
	log.Info().Msg("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"message":"shown"`)
	assert.Contains(t, out, `"level":"info"`)
}

func TestRequestLogger_WritesRouteAndStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer

	r := gin.New()
	r.Use(RequestLogger(New("info", &buf)))
	r.POST("/api/users/:id", func(c *gin.Context) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "nope"})
	})

	req := httptest.NewRequest(http.MethodPost, "/api/users/7", bytes.NewBufferString(`{"password":"hunter2"}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)

	out := buf.String()
	assert.Contains(t, out, `"path":"/api/users/:id"`)
	assert.Contains(t, out, `"status":400`)
	assert.Contains(t, out, `"level":"warn"`)
	assert.NotContains(t, out, "hunter2")
}
