package businessflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	resultSuccess     = "success"
	resultInvalid     = "invalid"
	resultDuplicate   = "duplicate"
	resultNotFound    = "not_found"
	resultUnavailable = "unavailable"
)

var (
	sequenceAllocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "charmemo_sequence_allocations_total",
			Help: "Total number of sequence values requested, by counter and result",
		},
		[]string{"counter", "result"},
	)

	characterOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "charmemo_character_operations_total",
			Help: "Total number of character registry operations, by operation and result",
		},
		[]string{"operation", "result"},
	)
)

// resultLabel maps a flow error onto a low-cardinality metric label
func resultLabel(err error) string {
	switch {
	case err == nil:
		return resultSuccess
	case IsValidationError(err):
		return resultInvalid
	case IsDuplicateName(err):
		return resultDuplicate
	case IsCharacterNotFound(err):
		return resultNotFound
	default:
		return resultUnavailable
	}
}
