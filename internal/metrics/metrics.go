// Package metrics expone los collectors Prometheus del control plane.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	provisioningTotal    *prometheus.CounterVec
	provisioningDuration prometheus.Histogram
	cloneTablesTotal     *prometheus.CounterVec
	guardChecksTotal     *prometheus.CounterVec
	tenantsDeletedTotal  prometheus.Counter
	reconcileOrphans     *prometheus.GaugeVec
)

// Register inicializa los collectors y devuelve el handler para /metrics.
func Register(registry prometheus.Registerer) (http.Handler, error) {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	var regErr error
	once.Do(func() {
		provisioningTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tenant_provisioning_total",
			Help: "Provisionings por resultado",
		}, []string{"result"}) // result: provisioned|with_warnings|duplicate|failed

		provisioningDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tenant_provisioning_duration_seconds",
			Help:    "Duración del provisioning completo",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		})

		cloneTablesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tenant_clone_tables_total",
			Help: "Tablas clonadas por resultado",
		}, []string{"result"}) // result: created|copied|failed

		guardChecksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tenant_guard_checks_total",
			Help: "Checks del tenant guard por resultado",
		}, []string{"result"}) // result: allow|violation

		tenantsDeletedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tenants_deleted_total",
			Help: "Tenants eliminados (registro + base)",
		})

		reconcileOrphans = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tenant_reconcile_orphans",
			Help: "Orphans detectados en el último sweep",
		}, []string{"kind"}) // kind: database|record

		for _, c := range []prometheus.Collector{
			provisioningTotal, provisioningDuration, cloneTablesTotal,
			guardChecksTotal, tenantsDeletedTotal, reconcileOrphans,
		} {
			if err := registry.Register(c); err != nil {
				regErr = err
				return
			}
		}
	})
	if regErr != nil {
		return nil, regErr
	}

	if gatherer, ok := registry.(prometheus.Gatherer); ok {
		return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}), nil
	}
	return promhttp.Handler(), nil
}

// ObserveProvision reporta el resultado de un provisioning.
func ObserveProvision(result string, d time.Duration) {
	if provisioningTotal == nil {
		return
	}
	provisioningTotal.WithLabelValues(result).Inc()
	provisioningDuration.Observe(d.Seconds())
}

// ObserveClone reporta los contadores por tabla de un clonado.
func ObserveClone(created, copied, failed int) {
	if cloneTablesTotal == nil {
		return
	}
	cloneTablesTotal.WithLabelValues("created").Add(float64(created))
	cloneTablesTotal.WithLabelValues("copied").Add(float64(copied))
	cloneTablesTotal.WithLabelValues("failed").Add(float64(failed))
}

// GuardCheck reporta un check del guard (allow|violation).
func GuardCheck(result string) {
	if guardChecksTotal == nil {
		return
	}
	guardChecksTotal.WithLabelValues(result).Inc()
}

// TenantDeleted incrementa el contador de borrados.
func TenantDeleted() {
	if tenantsDeletedTotal == nil {
		return
	}
	tenantsDeletedTotal.Inc()
}

// ReconcileOrphans fija los gauges del último sweep.
func ReconcileOrphans(databases, records int) {
	if reconcileOrphans == nil {
		return
	}
	reconcileOrphans.WithLabelValues("database").Set(float64(databases))
	reconcileOrphans.WithLabelValues("record").Set(float64(records))
}
