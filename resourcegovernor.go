package qweave

import (
	"sync"

	"github.com/theapemachine/errnie"
)

/*
ResourceGovernorRegulator implements the Regulator interface to keep tensor
allocations under a memory ceiling. Every materialize, merge and cutoff
growth asks it to admit the size of the tensor it is about to build before
anything is allocated, similar to how a power governor prevents engine damage
by limiting power consumption under heavy load.

Key features:
  - Byte-level admission of combined tensors
  - Peak usage tracking through Metrics
  - Holding growth at the peak after a rejection until renormalized
*/
type ResourceGovernorRegulator struct {
	mu sync.RWMutex

	ceiling int64    // Maximum tensor size in bytes; zero or less is unlimited
	metrics *Metrics // Engine metrics
	peak    int64    // Largest tensor admitted or observed
	limited bool     // Set by a rejection, cleared by Renormalize
}

/*
NewResourceGovernorRegulator creates a new resource governor regulator.

Parameters:
  - ceiling: Maximum size of a single tensor in bytes, zero or less for no limit
  - metrics: Engine metrics to report admissions and rejections to

Returns:
  - *ResourceGovernorRegulator: A new resource governor instance
*/
func NewResourceGovernorRegulator(ceiling int64, metrics *Metrics) *ResourceGovernorRegulator {
	return &ResourceGovernorRegulator{
		ceiling: ceiling,
		metrics: metrics,
	}
}

/*
Admit checks a tensor of the given size against the ceiling. It returns an
ErrResourceLimit error naming op when the tensor does not fit. After a
rejection the governor limits: tensors up to the peak already admitted still
pass, anything larger is refused until Renormalize.
*/
func (rg *ResourceGovernorRegulator) Admit(op string, bytes int64) error {
	rg.mu.Lock()
	defer rg.mu.Unlock()

	if rg.limited && bytes > rg.peak {
		if rg.metrics != nil {
			rg.metrics.recordRejection()
		}
		errnie.Info("%s: holding growth at %d bytes until renormalized", op, rg.peak)
		return newError(ErrResourceLimit, op, "tensor of %d bytes exceeds the held peak of %d, renormalize to grow", bytes, rg.peak)
	}

	if rg.ceiling > 0 && bytes > rg.ceiling {
		rg.limited = true
		if rg.metrics != nil {
			rg.metrics.recordRejection()
		}
		errnie.Info("%s: refusing tensor of %d bytes, ceiling is %d", op, bytes, rg.ceiling)
		return newError(ErrResourceLimit, op, "tensor of %d bytes exceeds ceiling of %d", bytes, rg.ceiling)
	}

	if bytes > rg.peak {
		rg.peak = bytes
	}
	if rg.metrics != nil {
		rg.metrics.recordTensor(bytes)
	}
	return nil
}

/*
Observe implements the Regulator interface by folding the peak tensor size
reported by the metrics into the governor's view.
*/
func (rg *ResourceGovernorRegulator) Observe(metrics *Metrics) {
	rg.mu.Lock()
	defer rg.mu.Unlock()

	rg.metrics = metrics

	metrics.mu.RLock()
	peak := metrics.PeakTensorBytes
	metrics.mu.RUnlock()

	if peak > rg.peak {
		rg.peak = peak
	}
}

/*
Limit implements the Regulator interface. It reports true after a rejection,
or when the peak tensor already sits at the ceiling.
*/
func (rg *ResourceGovernorRegulator) Limit() bool {
	rg.mu.RLock()
	defer rg.mu.RUnlock()

	return rg.limited || (rg.ceiling > 0 && rg.peak >= rg.ceiling)
}

// Renormalize implements the Regulator interface by clearing a rejection.
func (rg *ResourceGovernorRegulator) Renormalize() {
	rg.mu.Lock()
	defer rg.mu.Unlock()

	rg.limited = false
}

// GetResourceUsage returns the peak admitted tensor size and the ceiling.
func (rg *ResourceGovernorRegulator) GetResourceUsage() (peak, ceiling int64) {
	rg.mu.RLock()
	defer rg.mu.RUnlock()
	return rg.peak, rg.ceiling
}
