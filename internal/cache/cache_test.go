package cache

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestBucketStart_AlignsWithinBucket(t *testing.T) {
	base := time.Date(2026, 8, 30, 14, 2, 10, 0, time.UTC)
	later := base.Add(90 * time.Second) // still inside the 5-minute bucket

	if BucketStart(base, DefaultBucketWidth) != BucketStart(later, DefaultBucketWidth) {
		t.Error("requests moments apart must share a bucket")
	}

	next := base.Add(5 * time.Minute)
	if BucketStart(base, DefaultBucketWidth) == BucketStart(next, DefaultBucketWidth) {
		t.Error("bucket must roll over after its width")
	}
}

func TestKey_IncludesBucketAndParams(t *testing.T) {
	bucket := time.Date(2026, 8, 30, 14, 0, 0, 0, time.UTC)
	k1 := Key("floor", bucket, "c1", "Classic Paper", "30", "all")
	k2 := Key("floor", bucket, "c1", "Classic Paper", "30", "ebay")
	if k1 == k2 {
		t.Error("different platform filters must not share a key")
	}
	k3 := Key("floor", bucket.Add(5*time.Minute), "c1", "Classic Paper", "30", "all")
	if k1 == k3 {
		t.Error("different buckets must not share a key")
	}
}

func TestDo_MemoizesWithinExpiry(t *testing.T) {
	c := New(16)
	var calls int32

	compute := func() (any, error) {
		atomic.AddInt32(&calls, 1)
		return 42.0, nil
	}

	expires := time.Now().Add(time.Minute)
	for i := 0; i < 5; i++ {
		v, err := c.Do("k", expires, compute)
		if err != nil {
			t.Fatalf("do: %v", err)
		}
		if v.(float64) != 42.0 {
			t.Fatalf("unexpected value %v", v)
		}
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("expected exactly one computation, got %d", got)
	}
}

func TestDo_SingleFlightUnderConcurrency(t *testing.T) {
	c := New(16)
	var calls int32

	compute := func() (any, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(10 * time.Millisecond)
		return "v", nil
	}

	expires := time.Now().Add(time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Do("k", expires, compute); err != nil {
				t.Errorf("do: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("expected one in-flight computation, got %d", got)
	}
}

func TestDo_ErrorsNotCached(t *testing.T) {
	c := New(16)
	var calls int32

	failing := func() (any, error) {
		atomic.AddInt32(&calls, 1)
		return nil, errors.New("upstream down")
	}

	expires := time.Now().Add(time.Minute)
	if _, err := c.Do("k", expires, failing); err == nil {
		t.Fatal("expected error")
	}
	if _, err := c.Do("k", expires, failing); err == nil {
		t.Fatal("expected error on retry")
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("errors must not be cached, got %d calls", got)
	}
}

func TestDo_ExpiredEntriesRecompute(t *testing.T) {
	c := New(16)
	var calls int32

	compute := func() (any, error) {
		atomic.AddInt32(&calls, 1)
		return 1, nil
	}

	if _, err := c.Do("k", time.Now().Add(-time.Second), compute); err != nil {
		t.Fatalf("do: %v", err)
	}
	if _, err := c.Do("k", time.Now().Add(time.Minute), compute); err != nil {
		t.Fatalf("do: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("expected recompute after expiry, got %d", got)
	}
}

func TestCapacityEviction_LRU(t *testing.T) {
	c := New(3)
	expires := time.Now().Add(time.Minute)

	for i := 0; i < 5; i++ {
		key := fmt.Sprintf("k%d", i)
		if _, err := c.Do(key, expires, func() (any, error) { return i, nil }); err != nil {
			t.Fatalf("do: %v", err)
		}
	}
	if c.Size() != 3 {
		t.Errorf("expected capacity 3, got %d", c.Size())
	}

	// Oldest keys were evicted; a re-read recomputes.
	var recomputed bool
	if _, err := c.Do("k0", expires, func() (any, error) { recomputed = true; return 0, nil }); err != nil {
		t.Fatalf("do: %v", err)
	}
	if !recomputed {
		t.Error("expected k0 to have been evicted")
	}
}

func TestClean_RemovesExpired(t *testing.T) {
	c := New(16)

	if _, err := c.Do("dead", time.Now().Add(-time.Second), func() (any, error) { return 1, nil }); err != nil {
		t.Fatalf("do: %v", err)
	}
	if _, err := c.Do("live", time.Now().Add(time.Minute), func() (any, error) { return 2, nil }); err != nil {
		t.Fatalf("do: %v", err)
	}

	c.Clean()
	if c.Size() != 1 {
		t.Errorf("expected only the live entry, got %d", c.Size())
	}
}

func TestStats_CountsHitsAndMisses(t *testing.T) {
	c := New(16)
	expires := time.Now().Add(time.Minute)

	_, _ = c.Do("k", expires, func() (any, error) { return 1, nil })
	_, _ = c.Do("k", expires, func() (any, error) { return 1, nil })

	s := c.Stats()
	if s.Hits < 1 {
		t.Errorf("expected at least one hit, got %+v", s)
	}
	if s.Misses < 1 {
		t.Errorf("expected at least one miss, got %+v", s)
	}
	if s.Entries != 1 {
		t.Errorf("expected one entry, got %+v", s)
	}
}
