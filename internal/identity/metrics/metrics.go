package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stubbl/identity/internal/identity/store"
)

// Collectors live in their own package so the mongo driver and the services
// can share them without importing the HTTP layer.

var (
	StoreOperationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "identity_store_operation_duration_seconds",
		Help:    "Duration of document store operations",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
	}, []string{"collection", "operation", "outcome"})

	HousekeepingGrantsRemoved = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "identity_housekeeping_grants_removed_total",
		Help: "Expired persisted grants removed by housekeeping",
	})
)

// Register registers the collectors on reg (or the default registerer if nil).
// Registering twice is not an error.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{StoreOperationDuration, HousekeepingGrantsRemoved} {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return err
			}
		}
	}
	return nil
}

// Outcome buckets a store error into a low-cardinality label value.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, store.ErrNotFound):
		return "not_found"
	case errors.Is(err, store.ErrConcurrencyFailure):
		return "conflict"
	case errors.Is(err, store.ErrAlreadyExists):
		return "duplicate"
	case errors.Is(err, store.ErrInvalidArgument):
		return "invalid"
	default:
		return "error"
	}
}

// ObserveStoreOperation records the time since start. Store drivers call it
// from a deferred helper that reads the named error result once the
// operation has returned:
//
//	func observe(collection, operation string, start time.Time, err *error) {
//		metrics.ObserveStoreOperation(collection, operation, start, *err)
//	}
//
//	defer observe(UsersCollection, "create", time.Now(), &err)
func ObserveStoreOperation(collection, operation string, start time.Time, err error) {
	StoreOperationDuration.
		WithLabelValues(collection, operation, Outcome(err)).
		Observe(time.Since(start).Seconds())
}
