package utils

import (
	"sync"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"
)

func TestGroupWorkParallelCoversAll(t *testing.T) {
	for _, totalSize := range []int{0, 1, 7, 64, 1081} {
		covered := make([]int, totalSize)
		var mu sync.Mutex
		err := GroupWorkParallel(totalSize, func(groupNum, from, to int) error {
			mu.Lock()
			defer mu.Unlock()
			for i := from; i < to; i++ {
				covered[i]++
			}
			return nil
		})
		test.That(t, err, test.ShouldBeNil)
		for i := range covered {
			test.That(t, covered[i], test.ShouldEqual, 1)
		}
	}
}

func TestGroupWorkParallelSequentialFallback(t *testing.T) {
	origFactor := ParallelFactor
	defer func() { ParallelFactor = origFactor }()
	ParallelFactor = 1

	groups := 0
	err := GroupWorkParallel(100, func(groupNum, from, to int) error {
		groups++
		test.That(t, from, test.ShouldEqual, 0)
		test.That(t, to, test.ShouldEqual, 100)
		return nil
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, groups, test.ShouldEqual, 1)
}

func TestGroupWorkParallelCombinesErrors(t *testing.T) {
	origFactor := ParallelFactor
	defer func() { ParallelFactor = origFactor }()
	ParallelFactor = 4

	boom := errors.New("boom")
	err := GroupWorkParallel(16, func(groupNum, from, to int) error {
		if groupNum%2 == 0 {
			return boom
		}
		return nil
	})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, errors.Is(err, boom), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "group 0")
	test.That(t, err.Error(), test.ShouldContainSubstring, "group 2")
}
