package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RoleAssignments counts role assignment outcomes (newly_assigned|already_assigned).
	RoleAssignments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leasehold_role_assignments_total",
			Help: "Total number of role assignment facts processed",
		},
		[]string{"result"},
	)

	// PermissionPropagations counts permissions materialised into direct grants
	// during role assignment (newly_assigned|already_assigned).
	PermissionPropagations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leasehold_permission_propagations_total",
			Help: "Total number of permissions propagated from roles to users",
		},
		[]string{"result"},
	)

	// PermissionChecks counts authorization query evaluations and their outcome
	// (allowed|denied|error).
	PermissionChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leasehold_permission_checks_total",
			Help: "Total number of permission checks",
		},
		[]string{"result"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "leasehold_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
