// Package metrics exposes a small prometheus/client_golang registry
// for cmd/ctfdump: decode counters and a head-offset gauge. The core
// decoding packages (vm, proc, metadata) never import this package
// directly; instead cmd/ctfdump wires a *Sink into the VM constructor
// through the narrow vm.StatsSink interface, matching the teacher's
// AttachPt-style decoupling of the decode path from any one observer
// (§12).
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Sink implements vm.StatsSink backed by a dedicated prometheus
// registry, so cmd/ctfdump can serve it over /metrics without the core
// engine linking against client_golang.
type Sink struct {
	registry *prometheus.Registry

	packetsDecoded      prometheus.Counter
	eventRecordsDecoded prometheus.Counter
	errorsTotal         *prometheus.CounterVec
	bytesReadTotal      prometheus.Counter
	headOffsetBits      prometheus.Gauge
}

// NewSink creates a Sink with its own registry.
func NewSink() *Sink {
	s := &Sink{
		registry: prometheus.NewRegistry(),
		packetsDecoded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "yactfr",
			Name:      "packets_decoded_total",
			Help:      "Total number of packets fully decoded.",
		}),
		eventRecordsDecoded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "yactfr",
			Name:      "event_records_decoded_total",
			Help:      "Total number of event records fully decoded.",
		}),
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "yactfr",
			Name:      "errors_total",
			Help:      "Total number of decode errors, by kind.",
		}, []string{"kind"}),
		bytesReadTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "yactfr",
			Name:      "bytes_read_total",
			Help:      "Total number of bytes pulled from the data source.",
		}),
		headOffsetBits: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "yactfr",
			Name:      "head_offset_bits",
			Help:      "Absolute bit offset of the decoding head in the element sequence.",
		}),
	}
	s.registry.MustRegister(s.packetsDecoded, s.eventRecordsDecoded, s.errorsTotal,
		s.bytesReadTotal, s.headOffsetBits)
	return s
}

// Registry returns the Prometheus registry cmd/ctfdump serves over
// /metrics.
func (s *Sink) Registry() *prometheus.Registry { return s.registry }

func (s *Sink) IncPacketsDecoded()           { s.packetsDecoded.Inc() }
func (s *Sink) IncEventRecordsDecoded()      { s.eventRecordsDecoded.Inc() }
func (s *Sink) IncErrors(kind string)        { s.errorsTotal.WithLabelValues(kind).Inc() }
func (s *Sink) AddBytesRead(n int64)         { s.bytesReadTotal.Add(float64(n)) }
func (s *Sink) SetHeadOffsetBits(bits int64) { s.headOffsetBits.Set(float64(bits)) }
