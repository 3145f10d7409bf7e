package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	proxyCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docviewer_proxy_cache_total",
		Help: "Outcomes of resolving proxied documents: hit, miss or fill_error.",
	}, []string{"result"})

	upstreamFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docviewer_upstream_failures_total",
		Help: "Failed calls to the bot platform or object store, by operation.",
	}, []string{"operation"})
)
