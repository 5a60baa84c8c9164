package sim

import (
	"errors"
	"time"

	"github.com/bietkhonhungvandi212/kswap/internal/storage/kmem"
)

// ErrCorrupted reports a page that did not read back what its process last
// wrote.
var ErrCorrupted = errors.New("page contents corrupted")

// Report summarises a simulation run.
type Report struct {
	Rounds   int           `json:"rounds"`
	Accesses uint64        `json:"accesses"`
	Faults   uint64        `json:"faults"`
	Elapsed  time.Duration `json:"elapsed"`

	FaultsPerRound    []float64 `json:"faults_per_round"`
	EvictionsPerRound []float64 `json:"evictions_per_round"`
	FaultMean         float64   `json:"fault_mean"`
	FaultStdDev       float64   `json:"fault_stddev"`
	EvictionMean      float64   `json:"eviction_mean"`
	EvictionStdDev    float64   `json:"eviction_stddev"`

	// Loaded is taken after the last round, before the processes exit.
	Loaded kmem.Stats `json:"loaded"`
	Final  kmem.Stats `json:"final"`
}

// FaultRate is the share of accesses that faulted.
func (r *Report) FaultRate() float64 {
	if r.Accesses == 0 {
		return 0
	}
	return float64(r.Faults) / float64(r.Accesses)
}
