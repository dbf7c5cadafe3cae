// Package yactfr is the public decoding API: compile a metadata.TraceType
// into a Trace, then pull decoded Elements from one Iterator per
// concurrent reader (§5, §6).
package yactfr

import (
	"fmt"

	"github.com/kienanstewart/yactfr/internal/attach"
	"github.com/kienanstewart/yactfr/internal/logging"
	"github.com/kienanstewart/yactfr/internal/proc"
	"github.com/kienanstewart/yactfr/internal/vm"
	"github.com/kienanstewart/yactfr/metadata"
)

// StatsSink receives decode-time counters, optionally wired in by a
// caller (e.g. cmd/ctfdump backing it with internal/metrics). The core
// never imports a concrete metrics backend.
type StatsSink = vm.StatsSink

// Option configures a Trace at construction time.
type Option func(*Trace)

// WithLogger attaches a structured logger; every decode error is
// logged at the point it is discovered with headOffsetBits/kind
// fields. The default is a no-op logger.
func WithLogger(l logging.Logger) Option {
	return func(t *Trace) { _ = t.loggerPt.Replace(l) }
}

// WithStatsSink attaches a counters sink. The default is a no-op sink.
func WithStatsSink(s StatsSink) Option {
	return func(t *Trace) { _ = t.statsPt.Replace(s) }
}

// Trace is an immutable, compiled trace type plus a data-source
// factory: the procedures it owns may be shared by any number of
// concurrently-running iterators (§5). The logger and stats sink are
// attached through a generic attach.Point rather than stored as plain
// fields, so Begin can swap observers without the core ever importing
// a concrete logging or metrics backend.
type Trace struct {
	tt       *metadata.TraceType
	pktProc  *proc.PacketProc
	factory  DataSourceFactory
	loggerPt *attach.Point[logging.Logger]
	statsPt  *attach.Point[StatsSink]
}

// NewTrace validates and compiles tt, returning a Trace ready to mint
// iterators over data produced by factory. Builder-time errors (schema
// validation failures, unresolvable data locations) surface here, not
// during decoding (§7).
func NewTrace(tt *metadata.TraceType, factory DataSourceFactory, opts ...Option) (*Trace, error) {
	pp, err := proc.Build(tt)
	if err != nil {
		return nil, fmt.Errorf("yactfr: compiling trace type: %w", err)
	}
	t := &Trace{
		tt:       tt,
		pktProc:  pp,
		factory:  factory,
		loggerPt: attach.New[logging.Logger](),
		statsPt:  attach.New[StatsSink](),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// TraceType returns the trace type this Trace was compiled from.
func (t *Trace) TraceType() *metadata.TraceType { return t.tt }

// Begin creates a new Iterator positioned at the first element of the
// element sequence, obtaining its own DataSource handle from the
// factory. The caller must Close it when done.
func (t *Trace) Begin() (*Iterator, error) {
	src, err := t.factory.CreateDataSource()
	if err != nil {
		return nil, fmt.Errorf("yactfr: creating data source: %w", err)
	}
	it := &Iterator{
		trace: t,
		src:   src,
		vm:    vm.New(src, t.pktProc, t.loggerPt.Get(), t.statsPt.Get()),
	}
	if err := it.Next(); err != nil {
		_ = src.Close()
		return nil, err
	}
	return it, nil
}
