package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/collabroom/relay/internal/common/config"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New(config.MetricsConfig{Namespace: "relay"})

	m.ConnOpened()
	m.MessageReceived("edit")
	m.PublishResult("ok")
	m.Delivery("sent")
	m.FanoutObserved(2)
	m.ConnClosed()

	router := gin.New()
	router.GET("/metrics", m.HTTPHandler())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "relay_messages_received_total")
	assert.Contains(t, body, "relay_publish_total")
	assert.Contains(t, body, "relay_deliveries_total")
	assert.Contains(t, body, "relay_connections_active")
}

func TestMetricsDefaultNamespace(t *testing.T) {
	m := New(config.MetricsConfig{})
	assert.Equal(t, "relay", m.namespace)
}
