package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cartItemsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "storefront_cart_items",
		Help: "Total quantity of items currently in the cart",
	})

	cartTotalPriceGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "storefront_cart_total_price",
		Help: "Current cart total price",
	})

	cartCommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_cart_commands_total",
			Help: "Cart commands dispatched to the store",
		},
		[]string{"command"},
	)

	persistWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_cart_persist_writes_total",
			Help: "Successful cart storage operations",
		},
		[]string{"op"},
	)

	persistErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_cart_persist_errors_total",
			Help: "Failed cart storage operations, including corrupt stored values",
		},
		[]string{"op"},
	)

	persistDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storefront_cart_persist_duration_seconds",
			Help:    "Duration of cart storage writes and deletes",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)
)

// Storage operation labels.
const (
	opRead   = "read"
	opDecode = "decode"
	opWrite  = "write"
	opDelete = "delete"
)
