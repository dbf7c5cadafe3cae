package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestSinkCountsPacketsAndEventRecords(t *testing.T) {
	s := NewSink()
	s.IncPacketsDecoded()
	s.IncPacketsDecoded()
	s.IncEventRecordsDecoded()

	assert.Equal(t, float64(2), testutil.ToFloat64(s.packetsDecoded))
	assert.Equal(t, float64(1), testutil.ToFloat64(s.eventRecordsDecoded))
}

func TestSinkCountsErrorsByKind(t *testing.T) {
	s := NewSink()
	s.IncErrors("premature_end_of_data")
	s.IncErrors("premature_end_of_data")
	s.IncErrors("unknown_data_stream_type")

	assert.Equal(t, float64(2), testutil.ToFloat64(s.errorsTotal.WithLabelValues("premature_end_of_data")))
	assert.Equal(t, float64(1), testutil.ToFloat64(s.errorsTotal.WithLabelValues("unknown_data_stream_type")))
}

func TestSinkTracksBytesReadAndHeadOffset(t *testing.T) {
	s := NewSink()
	s.AddBytesRead(128)
	s.AddBytesRead(64)
	s.SetHeadOffsetBits(1536)

	assert.Equal(t, float64(192), testutil.ToFloat64(s.bytesReadTotal))
	assert.Equal(t, float64(1536), testutil.ToFloat64(s.headOffsetBits))

	s.SetHeadOffsetBits(2048)
	assert.Equal(t, float64(2048), testutil.ToFloat64(s.headOffsetBits))
}

func TestNewSinkRegistersCollectorsOnItsOwnRegistry(t *testing.T) {
	s := NewSink()
	mfs, err := s.Registry().Gather()
	assert.NoError(t, err)
	assert.NotEmpty(t, mfs)
}
