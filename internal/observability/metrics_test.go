package observability

import (
	"testing"
	"time"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	RegisterMetrics()
	RegisterMetrics()

	RecordSerialize(true, 512, 3*time.Millisecond)
	RecordSerialize(false, 0, time.Millisecond)
	RecordDeserialize(true, 512, 2*time.Millisecond)
	RecordDeserialize(false, 0, time.Millisecond)
}
