package flexlog

import (
	"fmt"
	"sync"
	"testing"

	"github.com/wayneeseguin/flexlog/internal/hazard"
	"github.com/wayneeseguin/flexlog/pkg/types"
)

func newTestMap() (*loggerMap, *Manager) {
	m := NewManager()
	return newLoggerMap(hazard.NewDomain()), m
}

func testLogger(m *Manager, name string) *Logger {
	return newLogger(m, name, types.LevelTrace, types.FormatPattern)
}

func TestInsertAndFind(t *testing.T) {
	lm, mgr := newTestMap()

	inserted := lm.insert("alpha", testLogger(mgr, "alpha"))
	if inserted == nil {
		t.Fatal("insert returned nil")
	}
	found := lm.find("alpha")
	if found != inserted {
		t.Error("find returned a different logger than insert")
	}
	if lm.find("beta") != nil {
		t.Error("find of absent name should return nil")
	}
	if lm.find("") != nil {
		t.Error("find of empty name should return nil")
	}
}

func TestFindFirstMatchWins(t *testing.T) {
	lm, mgr := newTestMap()
	first := lm.insert("dup", testLogger(mgr, "dup"))
	second := lm.insert("dup", testLogger(mgr, "dup"))

	// Insertion prepends: the most recent entry is found first.
	if got := lm.find("dup"); got != second {
		t.Error("find should return the most recently inserted entry")
	}
	_ = first
}

func TestRemove(t *testing.T) {
	lm, mgr := newTestMap()
	lm.insert("a", testLogger(mgr, "a"))
	lm.insert("b", testLogger(mgr, "b"))
	lm.insert("c", testLogger(mgr, "c"))

	if !lm.removeEntry("b") {
		t.Fatal("remove of existing entry failed")
	}
	if lm.find("b") != nil {
		t.Error("removed entry still found")
	}
	if lm.find("a") == nil || lm.find("c") == nil {
		t.Error("remove damaged sibling entries")
	}
	if lm.removeEntry("b") {
		t.Error("second remove should report false")
	}
	if lm.removeEntry("zzz") {
		t.Error("remove of absent entry should report false")
	}
}

func TestRemoveChainedBucketCollisions(t *testing.T) {
	lm, mgr := newTestMap()

	// Everything in one bucket is the worst case for the chain walk;
	// exercise removal at head, middle and tail positions.
	names := make([]string, 0, 8)
	target := bucketIndexFor("seed")
	lm.insert("seed", testLogger(mgr, "seed"))
	names = append(names, "seed")
	for i := 0; len(names) < 6; i++ {
		name := fmt.Sprintf("n%d", i)
		if bucketIndexFor(name) == target {
			lm.insert(name, testLogger(mgr, name))
			names = append(names, name)
		}
	}

	for _, name := range []string{names[5], names[0], names[3]} {
		if !lm.removeEntry(name) {
			t.Fatalf("remove %q failed", name)
		}
	}
	remaining := 0
	for _, name := range names {
		if lm.find(name) != nil {
			remaining++
		}
	}
	if remaining != 3 {
		t.Errorf("%d entries remain, want 3", remaining)
	}
}

func TestClear(t *testing.T) {
	lm, mgr := newTestMap()
	for i := 0; i < 50; i++ {
		name := fmt.Sprintf("logger-%d", i)
		lm.insert(name, testLogger(mgr, name))
	}
	lm.clear()
	if lm.count() != 0 {
		t.Errorf("count after clear = %d, want 0", lm.count())
	}
}

func TestBucketIndexStableAndBounded(t *testing.T) {
	for _, name := range []string{"", "a", "main", "some/long/logger.name"} {
		idx := bucketIndexFor(name)
		if idx < 0 || idx >= numBuckets {
			t.Fatalf("bucketIndexFor(%q) = %d out of range", name, idx)
		}
		if idx != bucketIndexFor(name) {
			t.Fatalf("bucketIndexFor(%q) not deterministic", name)
		}
	}
}

func TestConcurrentInsertLookup(t *testing.T) {
	lm, mgr := newTestMap()
	var insertMu sync.Mutex

	getOrInsert := func(name string) *Logger {
		if l := lm.find(name); l != nil {
			return l
		}
		insertMu.Lock()
		defer insertMu.Unlock()
		if l := lm.find(name); l != nil {
			return l
		}
		return lm.insert(name, testLogger(mgr, name))
	}

	const threads = 4
	const distinct = 100

	var wg sync.WaitGroup
	for i := 0; i < threads; i++ {
		wg.Add(1)
		go func(tid int) {
			defer wg.Done()
			for j := 0; j < distinct; j++ {
				// 60% of the names are shared across goroutines.
				name := fmt.Sprintf("L_%d", j)
				if j%5 >= 3 {
					name = fmt.Sprintf("L_%d_%d", tid, j)
				}
				if got := getOrInsert(name); got == nil {
					t.Errorf("getOrInsert(%q) returned nil", name)
					return
				}
				if lm.find(name) == nil {
					t.Errorf("inserted %q not findable", name)
					return
				}
			}
		}(i)
	}
	wg.Wait()

	// 60 shared names + 40 per-goroutine names each.
	want := 60 + threads*40
	if got := lm.count(); got != want {
		t.Errorf("registry holds %d loggers, want %d", got, want)
	}
}

func TestConcurrentFindDuringRemove(t *testing.T) {
	lm, mgr := newTestMap()
	const n = 64
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("r%d", i)
		lm.insert(name, testLogger(mgr, name))
	}

	var wg sync.WaitGroup
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for pass := 0; pass < 50; pass++ {
				for i := 0; i < n; i++ {
					_ = lm.find(fmt.Sprintf("r%d", i))
				}
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i += 2 {
			lm.removeEntry(fmt.Sprintf("r%d", i))
		}
	}()
	wg.Wait()

	if got := lm.count(); got != n/2 {
		t.Errorf("count = %d, want %d", got, n/2)
	}
}
