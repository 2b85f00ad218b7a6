package metrics_test

import (
	"testing"

	"github.com/systmms/keyops/internal/metrics"
)

// Recording before Init must be a no-op, and Init must be idempotent.
func TestRecordersAreNilSafeAndInitIdempotent(t *testing.T) {
	metrics.RecordList("aws.secretsmanager")
	metrics.RecordStore("aws.secretsmanager")
	metrics.RecordSkipped("aws.secretsmanager")
	metrics.RecordTransportError("aws.secretsmanager", "list")

	metrics.Init()
	metrics.Init()

	metrics.RecordList("aws.secretsmanager")
	metrics.RecordStore("gcp.secretmanager")
	metrics.RecordSkipped("azure.keyvault")
	metrics.RecordTransportError("sql", "create")
}
