// Package metrics exposes the panel's counters to Prometheus.
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ha_display"

// Collector accumulates panel activity and implements prometheus.Collector.
// A nil *Collector is valid and records nothing.
type Collector struct {
	mu sync.RWMutex

	hubRequests     map[hubKey]float64
	hubDuration     map[string]float64
	refreshes       map[refreshKey]float64
	touchActions    map[string]float64
	delayedRedraws  float64
	currentPage     string
	lastRefreshTime time.Time

	hubRequestsDesc     *prometheus.Desc
	hubDurationDesc     *prometheus.Desc
	refreshesDesc       *prometheus.Desc
	touchActionsDesc    *prometheus.Desc
	delayedRedrawsDesc  *prometheus.Desc
	currentPageDesc     *prometheus.Desc
	lastRefreshTimeDesc *prometheus.Desc
}

type hubKey struct {
	endpoint string
	status   string
}

type refreshKey struct {
	mode   string
	reason string
}

// NewCollector returns an empty collector.
func NewCollector() *Collector {
	return &Collector{
		hubRequests:  make(map[hubKey]float64),
		hubDuration:  make(map[string]float64),
		refreshes:    make(map[refreshKey]float64),
		touchActions: make(map[string]float64),

		hubRequestsDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "hub", "requests_total"),
			"Total number of Home Assistant API requests",
			[]string{"endpoint", "status"}, nil,
		),
		hubDurationDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "hub", "request_duration_seconds"),
			"Duration of the last Home Assistant API request in seconds",
			[]string{"endpoint"}, nil,
		),
		refreshesDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "refreshes_total"),
			"Total number of e-paper refreshes",
			[]string{"mode", "reason"}, nil,
		),
		touchActionsDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "touch_actions_total"),
			"Total number of interpreted touch events",
			[]string{"action"}, nil,
		),
		delayedRedrawsDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "delayed_redraws_total"),
			"Total number of delayed redraws scheduled after successful scene calls",
			nil, nil,
		),
		currentPageDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "current_page"),
			"Currently selected page (1 for the selected page)",
			[]string{"page"}, nil,
		),
		lastRefreshTimeDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "last_refresh_timestamp"),
			"Timestamp of the last e-paper refresh",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.hubRequestsDesc
	ch <- c.hubDurationDesc
	ch <- c.refreshesDesc
	ch <- c.touchActionsDesc
	ch <- c.delayedRedrawsDesc
	ch <- c.currentPageDesc
	ch <- c.lastRefreshTimeDesc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for k, v := range c.hubRequests {
		ch <- prometheus.MustNewConstMetric(c.hubRequestsDesc, prometheus.CounterValue, v, k.endpoint, k.status)
	}
	for endpoint, d := range c.hubDuration {
		ch <- prometheus.MustNewConstMetric(c.hubDurationDesc, prometheus.GaugeValue, d, endpoint)
	}
	for k, v := range c.refreshes {
		ch <- prometheus.MustNewConstMetric(c.refreshesDesc, prometheus.CounterValue, v, k.mode, k.reason)
	}
	for action, v := range c.touchActions {
		ch <- prometheus.MustNewConstMetric(c.touchActionsDesc, prometheus.CounterValue, v, action)
	}
	ch <- prometheus.MustNewConstMetric(c.delayedRedrawsDesc, prometheus.CounterValue, c.delayedRedraws)
	if c.currentPage != "" {
		ch <- prometheus.MustNewConstMetric(c.currentPageDesc, prometheus.GaugeValue, 1, c.currentPage)
	}
	ch <- prometheus.MustNewConstMetric(c.lastRefreshTimeDesc, prometheus.GaugeValue, float64(c.lastRefreshTime.Unix()))
}

// ObserveHubRequest records one hub round trip. statusCode 0 means the
// request failed before a response arrived.
func (c *Collector) ObserveHubRequest(endpoint string, statusCode int, d time.Duration) {
	if c == nil {
		return
	}
	status := "error"
	if statusCode != 0 {
		status = strconv.Itoa(statusCode)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hubRequests[hubKey{endpoint, status}]++
	c.hubDuration[endpoint] = d.Seconds()
}

// ObserveRefresh records one physical refresh.
func (c *Collector) ObserveRefresh(mode, reason string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refreshes[refreshKey{mode, reason}]++
	c.lastRefreshTime = time.Now()
}

// ObserveTouch records an interpreted touch.
func (c *Collector) ObserveTouch(action string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touchActions[action]++
}

// ObserveDelayedRedraw records a scheduled delayed redraw.
func (c *Collector) ObserveDelayedRedraw() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delayedRedraws++
}

// SetPage records the selected page.
func (c *Collector) SetPage(page string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.currentPage = page
}
