package util_test

import (
	"errors"
	"reflect"
	"sync/atomic"
	"testing"

	"github.com/keshon/bpg/internal/util"
)

func TestSortedKeys(t *testing.T) {
	m := map[string]int{"b": 2, "a": 1, "c": 3}
	got := util.SortedKeys(m)
	want := []string{"a", "b", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	if got := util.SortedKeys(map[string]int{}); len(got) != 0 {
		t.Fatalf("expected empty keys, got %v", got)
	}
}

func TestParallelRunsAll(t *testing.T) {
	inputs := make([]int, 100)
	for i := range inputs {
		inputs[i] = i
	}

	var sum int64
	err := util.Parallel(inputs, 8, func(n int) error {
		atomic.AddInt64(&sum, int64(n))
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if sum != 4950 {
		t.Fatalf("expected sum 4950, got %d", sum)
	}
}

func TestParallelPropagatesError(t *testing.T) {
	boom := errors.New("boom")
	err := util.Parallel([]int{1, 2, 3, 4}, 2, func(n int) error {
		if n == 3 {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestParallelEmptyInput(t *testing.T) {
	if err := util.Parallel(nil, 4, func(int) error { return nil }); err != nil {
		t.Fatal(err)
	}
}

func TestParallelZeroLimitDefaults(t *testing.T) {
	var count int64
	err := util.Parallel([]int{1, 2, 3}, 0, func(int) error {
		atomic.AddInt64(&count, 1)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Fatalf("expected 3 calls, got %d", count)
	}
}

func TestWorkerCount(t *testing.T) {
	if util.WorkerCount() < 1 {
		t.Fatal("worker count must be positive")
	}
}
