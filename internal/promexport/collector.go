// Package promexport exposes pool and controller state as Prometheus
// metrics, following the Desc-plus-Collect pattern of a standard custom
// collector rather than registering updated gauges on every tick.
package promexport

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jannes-thesis/scaling-adapter/internal/pool"
	"github.com/jannes-thesis/scaling-adapter/internal/scaling"
)

var (
	poolSize = prometheus.NewDesc(
		"ioscale_pool_size", "Current number of live workers.", nil, nil)
	scaleMetricMean = prometheus.NewDesc(
		"ioscale_scale_metric_mean", "Mean of the latest averaged scale metric window.", nil, nil)
	scaleMetricStddev = prometheus.NewDesc(
		"ioscale_scale_metric_stddev", "Stddev of the latest averaged scale metric window.", nil, nil)
	latestThroughput = prometheus.NewDesc(
		"ioscale_latest_throughput_bytes_per_ms", "Scale metric of the most recent raw interval.", nil, nil)
)

// Snapshotter is the subset of pool.Pool this collector reads on every
// scrape. Both AdaptivePool/WatermarkPool/FixedPool satisfy it via
// pool.Pool.Size.
type Snapshotter interface {
	Size() int
}

// Collector adapts a running pool and (optionally) its scaling
// controller to the prometheus.Collector interface. controller may be
// nil for the fixed/watermark variants, which don't run one.
type Collector struct {
	pool       Snapshotter
	controller *scaling.Controller
}

var _ prometheus.Collector = (*Collector)(nil)
var _ Snapshotter = (*pool.FixedPool)(nil)
var _ Snapshotter = (*pool.WatermarkPool)(nil)
var _ Snapshotter = (*pool.AdaptivePool)(nil)

// New wires p and (if non-nil) controller into a scrapeable collector.
func New(p Snapshotter, controller *scaling.Controller) *Collector {
	return &Collector{pool: p, controller: controller}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- poolSize
	ch <- scaleMetricMean
	ch <- scaleMetricStddev
	ch <- latestThroughput
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(poolSize, prometheus.GaugeValue, float64(c.pool.Size()))

	if c.controller == nil {
		return
	}

	if point, ok := c.controller.GetLatestMetrics(); ok {
		ch <- prometheus.MustNewConstMetric(latestThroughput, prometheus.GaugeValue, point.Derived.ScaleMetric)
	}
	if avg, ok := c.controller.GetLatestAverage(); ok {
		ch <- prometheus.MustNewConstMetric(scaleMetricMean, prometheus.GaugeValue, avg.MeanScaleMetric)
		ch <- prometheus.MustNewConstMetric(scaleMetricStddev, prometheus.GaugeValue, avg.StddevScaleMetric)
	}
}
