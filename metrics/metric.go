package metrics

import (
	grpcprometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	Registry = prometheus.NewRegistry()

	GRPCClientMetrics = grpcprometheus.NewClientMetrics(
		func(c *prometheus.CounterOpts) {
			c.Namespace = "Hive"
		},
	)

	newReadConnections = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "Hive",
		Name:      "new_read_connections",
		Help:      "read connections opened to data nodes",
	})
	newWriteConnections = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "Hive",
		Name:      "new_write_connections",
		Help:      "read-write connections opened to data nodes",
	})
	connectionFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "Hive",
		Name:      "connection_failures",
		Help:      "failed connection acquisitions",
	})
	directoryReadCount = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "Hive",
		Name:      "directory_read_count",
		Help:      "directory lookup operations",
	})
	directoryWriteCount = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "Hive",
		Name:      "directory_write_count",
		Help:      "directory mutation operations",
	})
)

func init() {
	Registry.MustRegister(
		GRPCClientMetrics,
		newReadConnections,
		newWriteConnections,
		connectionFailures,
		directoryReadCount,
		directoryWriteCount,
	)
}

// Sink receives the hive's performance counters. It is optional: a hive
// loaded without performance monitoring uses the nop sink.
type Sink interface {
	IncNewReadConnections()
	IncNewWriteConnections()
	IncConnectionFailures()
	IncDirectoryReadCount()
	IncDirectoryWriteCount()
}

type promSink struct{}

func NewSink() Sink { return promSink{} }

func (promSink) IncNewReadConnections()  { newReadConnections.Inc() }
func (promSink) IncNewWriteConnections() { newWriteConnections.Inc() }
func (promSink) IncConnectionFailures()  { connectionFailures.Inc() }
func (promSink) IncDirectoryReadCount()  { directoryReadCount.Inc() }
func (promSink) IncDirectoryWriteCount() { directoryWriteCount.Inc() }

type nopSink struct{}

func NewNopSink() Sink { return nopSink{} }

func (nopSink) IncNewReadConnections()  {}
func (nopSink) IncNewWriteConnections() {}
func (nopSink) IncConnectionFailures()  {}
func (nopSink) IncDirectoryReadCount()  {}
func (nopSink) IncDirectoryWriteCount() {}
