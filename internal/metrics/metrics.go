package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AcquisitionAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_acquisition_attempts_total",
			Help: "Acquisition strategy attempts by strategy and outcome",
		},
		[]string{"strategy", "outcome"},
	)

	ProtocolFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_protocol_fetches_total",
			Help: "Protocol attachment fetches by outcome",
		},
		[]string{"outcome"},
	)

	TranscodeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_transcode_duration_seconds",
			Help:    "Wall-clock duration of encoder invocations",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"job"},
	)

	TranscodesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_transcodes_total",
			Help: "Encoder invocations by job and outcome",
		},
		[]string{"job", "outcome"},
	)

	OutputBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_output_bytes",
			Help:    "Size of returned media assets in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
		},
		[]string{"kind"},
	)

	ScratchReleasesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_scratch_releases_total",
			Help: "Temp file releases by outcome",
		},
		[]string{"outcome"},
	)

	IgnoredExitCodesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_ignored_exit_codes_total",
			Help: "Downloader exits that reported an error but produced usable output",
		},
		[]string{"strategy"},
	)
)
