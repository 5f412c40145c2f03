package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsEndpoint(t *testing.T) {
	c := NewCollector()
	c.ObserveHubRequest("script/turn_on", 200, 120*time.Millisecond)
	c.ObserveHubRequest("states", 0, time.Second)
	c.ObserveRefresh("partial", "touch")
	c.ObserveTouch("next")
	c.ObserveDelayedRedraw()
	c.SetPage("POWER_STATS")

	handler, _ := Handler(c)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	for _, want := range []string{
		`ha_display_hub_requests_total{endpoint="script/turn_on",status="200"} 1`,
		`ha_display_hub_requests_total{endpoint="states",status="error"} 1`,
		`ha_display_hub_request_duration_seconds{endpoint="states"} 1`,
		`ha_display_refreshes_total{mode="partial",reason="touch"} 1`,
		`ha_display_touch_actions_total{action="next"} 1`,
		`ha_display_delayed_redraws_total 1`,
		`ha_display_current_page{page="POWER_STATS"} 1`,
		`ha_display_last_refresh_timestamp`,
	} {
		assert.Contains(t, body, want)
	}
}

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.ObserveHubRequest("states", 200, time.Millisecond)
		c.ObserveRefresh("full", "schedule")
		c.ObserveTouch("none")
		c.ObserveDelayedRedraw()
		c.SetPage("SHUTDOWN")
	})
}
