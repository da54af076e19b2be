package yathreadsafeset_test

import (
	"sync"
	"testing"

	"github.com/YaCodeDev/GoYaBotKit/yathreadsafeset"
)

func TestThreadSafeSet_BasicOps(t *testing.T) {
	set := yathreadsafeset.NewThreadSafeSet[string]()

	set.Set("message")
	set.Set("callback_query")

	if !set.Has("message") || !set.Has("callback_query") {
		t.Fatalf("Set or Has failed")
	}

	if set.Has("poll") {
		t.Fatalf("Has returned true for missing element")
	}

	set.Delete("message")

	if set.Length() != 1 {
		t.Fatalf("Length failed, got %d", set.Length())
	}
}

func TestThreadSafeSet_UnionAndSorted(t *testing.T) {
	left := yathreadsafeset.NewThreadSafeSet("poll", "message")
	right := yathreadsafeset.NewThreadSafeSet("message", "inline_query")

	got := yathreadsafeset.Sorted(left.Union(right))
	want := []string{"inline_query", "message", "poll"}

	if len(got) != len(want) {
		t.Fatalf("Union length mismatch: got %v want %v", got, want)
	}

	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Sorted mismatch at %d: got %v want %v", i, got, want)
		}
	}
}

func TestThreadSafeSet_ZeroValueConcurrentSet(t *testing.T) {
	var (
		set yathreadsafeset.ThreadSafeSet[int]
		wg  sync.WaitGroup
	)

	for i := range 100 {
		wg.Add(1)

		go func(value int) {
			defer wg.Done()

			set.Set(value % 10)
		}(i)
	}

	wg.Wait()

	if set.Length() != 10 {
		t.Fatalf("expected 10 distinct values, got %d", set.Length())
	}
}
