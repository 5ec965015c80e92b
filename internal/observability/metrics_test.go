package observability

import (
	"testing"
	"time"

	"github.com/danmuck/objsync/internal/testutil/testlog"
	"github.com/rs/zerolog/log"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	testlog.Start(t)
	RegisterMetrics()
	RegisterMetrics()

	RecordHTTPRequest("peer-1", "GET", "/health", 200, 12*time.Millisecond)
	RecordMessage("peer-1", "out", "set_owner")
	RecordDropped("peer-1", "unknown_object")
	RecordTransition("peer-1", "unowned", "owned_local")
	SetLiveObjects("peer-1", 3)

	log.Info().Msg("observability/metrics: registration idempotent and recording paths executed")
}
