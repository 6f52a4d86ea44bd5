// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pipeline

import (
	"github.com/blinklabs-io/webbundle/integrityblock"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricsNamespace = "webbundle"
	metricsSubsystem = "pipeline"
)

// StatsProvider is implemented by anything that can report pipeline statistics,
// such as BundlePipeline and PipelineMetrics.
type StatsProvider interface {
	Stats() PipelineStats
}

// PrometheusCollector exposes pipeline statistics as Prometheus metrics. Values are
// read from the StatsProvider on every scrape.
type PrometheusCollector struct {
	provider StatsProvider

	submitted     *prometheus.Desc
	parsed        *prometheus.Desc
	verified      *prometheus.Desc
	reported      *prometheus.Desc
	parseErrors   *prometheus.Desc
	verifyErrors  *prometheus.Desc
	reportErrors  *prometheus.Desc
	parseSeconds  *prometheus.Desc
	verifySeconds *prometheus.Desc
	queueDepth    *prometheus.Desc
	peakDepth     *prometheus.Desc
}

// NewPrometheusCollector returns a collector for the given provider. The caller
// registers it with a prometheus.Registerer.
func NewPrometheusCollector(provider StatsProvider) *PrometheusCollector {
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, metricsSubsystem, name),
			help,
			labels,
			nil,
		)
	}
	return &PrometheusCollector{
		provider:      provider,
		submitted:     desc("bundles_submitted_total", "Bundles submitted to the pipeline."),
		parsed:        desc("bundles_parsed_total", "Bundles whose integrity block parsed successfully."),
		verified:      desc("bundles_verified_total", "Bundles whose signatures verified successfully."),
		reported:      desc("bundles_reported_total", "Bundles passed to the report function without error."),
		parseErrors:   desc("parse_errors_total", "Integrity block parse failures by parser error type.", "error_type"),
		verifyErrors:  desc("verify_errors_total", "Signature verification failures."),
		reportErrors:  desc("report_errors_total", "Errors returned by the report function."),
		parseSeconds:  desc("parse_seconds_total", "Cumulative time spent parsing integrity blocks."),
		verifySeconds: desc("verify_seconds_total", "Cumulative time spent verifying signatures."),
		queueDepth:    desc("queue_depth", "Bundles waiting between pipeline stages."),
		peakDepth:     desc("queue_depth_peak", "Highest observed queue depth."),
	}
}

// Describe implements prometheus.Collector.
func (c *PrometheusCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.submitted
	ch <- c.parsed
	ch <- c.verified
	ch <- c.reported
	ch <- c.parseErrors
	ch <- c.verifyErrors
	ch <- c.reportErrors
	ch <- c.parseSeconds
	ch <- c.verifySeconds
	ch <- c.queueDepth
	ch <- c.peakDepth
}

// Collect implements prometheus.Collector.
func (c *PrometheusCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.provider.Stats()
	counter := func(desc *prometheus.Desc, value uint64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(value), labels...)
	}
	counter(c.submitted, stats.BundlesSubmitted)
	counter(c.parsed, stats.BundlesParsed)
	counter(c.verified, stats.BundlesVerified)
	counter(c.reported, stats.BundlesReported)
	counter(c.parseErrors, stats.FormatErrors, integrityblock.ErrorTypeFormat.String())
	counter(c.parseErrors, stats.VersionErrors, integrityblock.ErrorTypeVersion.String())
	counter(c.parseErrors, stats.InternalErrors, integrityblock.ErrorTypeParserInternal.String())
	counter(c.verifyErrors, stats.VerifyErrors)
	counter(c.reportErrors, stats.ReportErrors)
	ch <- prometheus.MustNewConstMetric(c.parseSeconds, prometheus.CounterValue, stats.ParseTime.Seconds())
	ch <- prometheus.MustNewConstMetric(c.verifySeconds, prometheus.CounterValue, stats.VerifyTime.Seconds())
	ch <- prometheus.MustNewConstMetric(c.queueDepth, prometheus.GaugeValue, float64(stats.CurrentQueueDepth))
	ch <- prometheus.MustNewConstMetric(c.peakDepth, prometheus.GaugeValue, float64(stats.PeakQueueDepth))
}
