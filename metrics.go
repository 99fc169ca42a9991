package kafkaconnector

import (
	"fmt"

	"github.com/rcrowley/go-metrics"
)

// Metric names recorded in Config.MetricRegistry.
const (
	requestRateMetric       = "request-rate"
	requestSizeMetric       = "request-size"
	responseRateMetric      = "response-rate"
	responseSizeMetric      = "response-size"
	requestsInFlightMetric  = "requests-in-flight"
	metadataRefreshMetric   = "metadata-refresh-rate"
	routingFailureMetric    = "routing-failure-rate"
	groupRejoinMetric       = "group-rejoin-rate"
	connectionAbortedMetric = "connection-aborted-rate"
	recordsPerRequestMetric = "records-per-request"
	recordSendRateMetric    = "record-send-rate"
	histogramReservoirSize  = 1028
	histogramExpDecayAlpha  = 0.015
)

func getOrRegisterHistogram(name string, r metrics.Registry) metrics.Histogram {
	return r.GetOrRegister(name, func() metrics.Histogram {
		return metrics.NewHistogram(metrics.NewExpDecaySample(histogramReservoirSize, histogramExpDecayAlpha))
	}).(metrics.Histogram)
}

func getMetricNameForBroker(name string, brokerID int32) string {
	return fmt.Sprintf(name+"-for-broker-%d", brokerID)
}

func getOrRegisterBrokerMeter(name string, brokerID int32, r metrics.Registry) metrics.Meter {
	return metrics.GetOrRegisterMeter(getMetricNameForBroker(name, brokerID), r)
}

func getOrRegisterBrokerHistogram(name string, brokerID int32, r metrics.Registry) metrics.Histogram {
	return getOrRegisterHistogram(getMetricNameForBroker(name, brokerID), r)
}

// connMetrics is the set of meters a broker connection updates. Connections to
// bootstrap addresses have no broker id yet and only update the global ones.
type connMetrics struct {
	requestRate        metrics.Meter
	requestSize        metrics.Histogram
	responseRate       metrics.Meter
	responseSize       metrics.Histogram
	requestsInFlight   metrics.Counter
	brokerRequestRate  metrics.Meter
	brokerRequestSize  metrics.Histogram
	brokerResponseRate metrics.Meter
	brokerResponseSize metrics.Histogram
}

func newConnMetrics(brokerID int32, r metrics.Registry) *connMetrics {
	m := &connMetrics{
		requestRate:      metrics.GetOrRegisterMeter(requestRateMetric, r),
		requestSize:      getOrRegisterHistogram(requestSizeMetric, r),
		responseRate:     metrics.GetOrRegisterMeter(responseRateMetric, r),
		responseSize:     getOrRegisterHistogram(responseSizeMetric, r),
		requestsInFlight: metrics.GetOrRegisterCounter(requestsInFlightMetric, r),
	}
	if brokerID >= 0 {
		m.brokerRequestRate = getOrRegisterBrokerMeter(requestRateMetric, brokerID, r)
		m.brokerRequestSize = getOrRegisterBrokerHistogram(requestSizeMetric, brokerID, r)
		m.brokerResponseRate = getOrRegisterBrokerMeter(responseRateMetric, brokerID, r)
		m.brokerResponseSize = getOrRegisterBrokerHistogram(responseSizeMetric, brokerID, r)
	}
	return m
}

func (m *connMetrics) updateRequest(size int, expectReply bool) {
	m.requestRate.Mark(1)
	m.requestSize.Update(int64(size))
	if m.brokerRequestRate != nil {
		m.brokerRequestRate.Mark(1)
		m.brokerRequestSize.Update(int64(size))
	}
	if expectReply {
		m.requestsInFlight.Inc(1)
	}
}

func (m *connMetrics) updateResponse(size int) {
	m.responseRate.Mark(1)
	m.responseSize.Update(int64(size))
	if m.brokerResponseRate != nil {
		m.brokerResponseRate.Mark(1)
		m.brokerResponseSize.Update(int64(size))
	}
	m.requestsInFlight.Dec(1)
}

// dropPending takes requests that will never be answered out of the in-flight count.
func (m *connMetrics) dropPending(n int) {
	m.requestsInFlight.Dec(int64(n))
}
