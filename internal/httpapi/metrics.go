package httpapi

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "athyper_requests_total",
		Help: "Requests entering the kernel middleware, by outcome.",
	}, []string{"outcome"})

	tenantFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "athyper_tenant_context_failures_total",
		Help: "Tenant context resolution failures, by kind.",
	}, []string{"kind"})

	authFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "athyper_auth_failures_total",
		Help: "Rejected tokens and missing credentials, by kind.",
	}, []string{"kind"})
)
