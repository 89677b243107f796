package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docfetch_cache_hits_total",
		Help: "Page requests served from the content cache.",
	})
	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docfetch_cache_misses_total",
		Help: "Page requests that required a fresh fetch.",
	})
	cacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docfetch_cache_evictions_total",
		Help: "Cache entries removed by capacity eviction or expiry.",
	})
	fetchFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docfetch_fetch_failures_total",
		Help: "Upstream fetch+extract failures.",
	})
	fetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "docfetch_fetch_duration_seconds",
		Help:    "Latency of upstream fetch+extract calls.",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
	})
)
