package kafka

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Producer metrics, labelled by topic.
var (
	ProducerMessagesPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storefront",
		Subsystem: "kafka",
		Name:      "messages_published_total",
		Help:      "Messages accepted by the Kafka writer.",
	}, []string{"topic"})

	ProducerPublishErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storefront",
		Subsystem: "kafka",
		Name:      "publish_errors_total",
		Help:      "Publish failures, async delivery failures included.",
	}, []string{"topic"})

	ProducerPublishDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "storefront",
		Subsystem: "kafka",
		Name:      "publish_duration_seconds",
		Help:      "Time spent in Publish.",
		Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"topic"})

	ProducerMessageBytes = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "storefront",
		Subsystem: "kafka",
		Name:      "message_bytes",
		Help:      "Encoded event size.",
		Buckets:   prometheus.ExponentialBuckets(128, 2, 10),
	}, []string{"topic"})
)
