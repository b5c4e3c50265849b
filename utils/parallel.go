// Package utils contains small shared helpers for the reprojection
// transforms.
package utils

import (
	"math"
	"runtime"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"
)

// ParallelFactor controls the max level of parallelization. This might be
// useful to set in tests where too much parallelism actually slows tests
// down in aggregate.
var ParallelFactor = runtime.GOMAXPROCS(0)

func init() {
	if ParallelFactor <= 0 {
		ParallelFactor = 1
	}
}

// GroupWorkFunc runs a contiguous band [from, to) of a larger piece of
// work. Returning an error stops no other group but fails the whole call.
type GroupWorkFunc func(groupNum, from, to int) error

// GroupWorkParallel splits totalSize units of work into contiguous bands,
// one per worker, and runs them in parallel. All bands always run to
// completion; the returned error combines every band's error.
func GroupWorkParallel(totalSize int, groupWork GroupWorkFunc) error {
	numGroups := ParallelFactor
	if numGroups > totalSize {
		numGroups = totalSize
	}
	if numGroups <= 1 {
		return groupWork(0, 0, totalSize)
	}

	groupSize := int(math.Floor(float64(totalSize) / float64(numGroups)))
	extra := totalSize % numGroups

	var wait sync.WaitGroup
	wait.Add(numGroups)

	var errMu sync.Mutex
	var groupErrs error
	storeErr := func(err error) {
		errMu.Lock()
		defer errMu.Unlock()
		groupErrs = multierr.Combine(groupErrs, err)
	}

	for groupNum := 0; groupNum < numGroups; groupNum++ {
		groupNumCopy := groupNum
		utils.PanicCapturingGo(func() {
			defer wait.Done()
			groupNum := groupNumCopy

			from := groupSize * groupNum
			to := groupSize * (groupNum + 1)
			if groupNum == numGroups-1 {
				to += extra
			}
			if err := groupWork(groupNum, from, to); err != nil {
				storeErr(errors.Wrapf(err, "group %d [%d, %d)", groupNum, from, to))
			}
		})
	}
	wait.Wait()
	return groupErrs
}
