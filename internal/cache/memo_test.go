package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestMemoryProvider_TTL(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryProvider()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	_ = p.Set(ctx, "k", []byte("v"), time.Minute)
	if v, err := p.Get(ctx, "k"); err != nil || string(v) != "v" {
		t.Fatalf("expected hit, got %q %v", v, err)
	}

	now = now.Add(2 * time.Minute)
	if _, err := p.Get(ctx, "k"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("expected expiry miss, got %v", err)
	}

	ok, _ := p.SetNX(ctx, "k", []byte("a"), 0)
	if !ok {
		t.Error("SetNX should succeed on expired key")
	}
	ok, _ = p.SetNX(ctx, "k", []byte("b"), 0)
	if ok {
		t.Error("SetNX should fail on live key")
	}
}

func TestMemo_HitAfterCompute(t *testing.T) {
	ctx := context.Background()
	m := NewMemo(NewMemoryProvider(), time.Hour, 0)
	var calls int32
	compute := func(context.Context) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		return []byte("forecast"), nil
	}

	first, err := m.Do(ctx, "REQ-1", "key-a", compute)
	if err != nil || first.Hit {
		t.Fatalf("first call should compute: %+v %v", first, err)
	}
	second, err := m.Do(ctx, "REQ-1", "key-a", compute)
	if err != nil || !second.Hit || string(second.Value) != "forecast" {
		t.Fatalf("second call should hit: %+v %v", second, err)
	}
	if calls != 1 {
		t.Errorf("compute ran %d times, want 1", calls)
	}
}

func TestMemo_SingleFlight(t *testing.T) {
	ctx := context.Background()
	m := NewMemo(NoopProvider{}, time.Hour, 0)

	var calls int32
	release := make(chan struct{})
	compute := func(context.Context) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return []byte("x"), nil
	}

	const callers = 8
	var started, done sync.WaitGroup
	started.Add(callers)
	done.Add(callers)
	for i := 0; i < callers; i++ {
		go func() {
			defer done.Done()
			started.Done()
			_, _ = m.Do(ctx, "", "same-key", compute)
		}()
	}
	started.Wait()
	time.Sleep(20 * time.Millisecond)
	close(release)
	done.Wait()

	if calls < 1 || calls > callers {
		t.Fatalf("unexpected compute count %d", calls)
	}
	if calls == callers {
		t.Errorf("expected callers to share computations, got %d separate runs", calls)
	}
}

func TestMemo_ServesStaleOnFailure(t *testing.T) {
	ctx := context.Background()
	m := NewMemo(NewMemoryProvider(), time.Hour, 0)

	if _, err := m.Do(ctx, "REQ-1", "fingerprint-1", func(context.Context) ([]byte, error) {
		return []byte("old"), nil
	}); err != nil {
		t.Fatal(err)
	}

	boom := errors.New("boom")
	e, err := m.Do(ctx, "REQ-1", "fingerprint-2", func(context.Context) ([]byte, error) {
		return nil, boom
	})
	if err != nil {
		t.Fatalf("expected stale value, got error %v", err)
	}
	if !e.Stale || string(e.Value) != "old" {
		t.Errorf("expected stale 'old', got %+v", e)
	}

	_, err = m.Do(ctx, "REQ-2", "fingerprint-3", func(context.Context) ([]byte, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped compute error for group without history, got %v", err)
	}
}

func TestMemo_Invalidate(t *testing.T) {
	ctx := context.Background()
	m := NewMemo(NewMemoryProvider(), time.Hour, 0)
	_, _ = m.Do(ctx, "REQ-1", "k", func(context.Context) ([]byte, error) { return []byte("v"), nil })

	if err := m.Invalidate(ctx, "REQ-1", "k"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Latest(ctx, "REQ-1"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("expected stale value dropped, got %v", err)
	}
}
