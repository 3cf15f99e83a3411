// Package metrics exposes prometheus counters for the seckill pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	Admissions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "seckill_admissions_total",
		Help: "Total admission attempts by outcome",
	}, []string{"outcome"})

	OrdersCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "seckill_orders_created_total",
		Help: "Total orders durably created by the fulfillment pipeline",
	})

	Retries = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "seckill_fulfillment_retries_total",
		Help: "Total fulfillment messages re-queued for retry",
	})

	DeadLetters = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "seckill_dead_letters_total",
		Help: "Total fulfillment messages routed to the dead-letter queue",
	})

	Rollbacks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "seckill_stock_rollbacks_total",
		Help: "Total stock rollbacks performed after terminal order failure",
	})

	Duplicates = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "seckill_duplicate_deliveries_total",
		Help: "Total duplicate message deliveries short-circuited",
	})
)

func init() {
	prometheus.MustRegister(Admissions, OrdersCreated, Retries, DeadLetters, Rollbacks, Duplicates)
}
