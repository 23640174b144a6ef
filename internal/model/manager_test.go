package model

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakeResource struct {
	mu     sync.Mutex
	closed bool
}

func (r *fakeResource) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func newTestManager() *Manager {
	return NewManager(zerolog.Nop(), nil)
}

func TestAcquireLoadsAndReleaseUnloads(t *testing.T) {
	m := newTestManager()
	res := &fakeResource{}
	loads := 0
	m.Register(KindSpeech, func() (Resource, error) {
		loads++
		return res, nil
	})

	h, err := m.Acquire(context.Background(), KindSpeech)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if loads != 1 {
		t.Errorf("loads = %d, want 1", loads)
	}
	if kind, ok := m.Resident(); !ok || kind != KindSpeech {
		t.Errorf("Resident() = %v, %v; want speech, true", kind, ok)
	}

	h.Release()
	if !res.closed {
		t.Error("resource not closed on release")
	}
	if _, ok := m.Resident(); ok {
		t.Error("model still resident after release")
	}

	// Double release is a no-op.
	h.Release()
}

func TestAcquireUnregisteredKind(t *testing.T) {
	m := newTestManager()
	if _, err := m.Acquire(context.Background(), KindLanguage); err == nil {
		t.Fatal("Acquire() should fail for unregistered kind")
	}
}

func TestLoadFailureReleasesGrant(t *testing.T) {
	m := newTestManager()
	m.Register(KindSpeech, func() (Resource, error) {
		return nil, errors.New("weights missing")
	})
	m.Register(KindLanguage, func() (Resource, error) {
		return &fakeResource{}, nil
	})

	_, err := m.Acquire(context.Background(), KindSpeech)
	if !errors.Is(err, ErrLoad) {
		t.Fatalf("Acquire() error = %v, want ErrLoad", err)
	}

	// The failed load must not wedge the manager.
	h, err := m.Acquire(context.Background(), KindLanguage)
	if err != nil {
		t.Fatalf("Acquire() after failed load: %v", err)
	}
	h.Release()
}

func TestAcquireIsExclusive(t *testing.T) {
	m := newTestManager()
	m.Register(KindSpeech, func() (Resource, error) { return &fakeResource{}, nil })
	m.Register(KindLanguage, func() (Resource, error) { return &fakeResource{}, nil })

	h1, err := m.Acquire(context.Background(), KindSpeech)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	acquired := make(chan *Handle)
	go func() {
		h2, err := m.Acquire(context.Background(), KindLanguage)
		if err != nil {
			t.Errorf("second Acquire() error = %v", err)
		}
		acquired <- h2
	}()

	select {
	case <-acquired:
		t.Fatal("second Acquire() completed while first handle was held")
	case <-time.After(50 * time.Millisecond):
	}

	h1.Release()

	select {
	case h2 := <-acquired:
		h2.Release()
	case <-time.After(time.Second):
		t.Fatal("second Acquire() did not complete after release")
	}
}

func TestAcquireFIFOOrder(t *testing.T) {
	m := newTestManager()
	m.Register(KindSpeech, func() (Resource, error) { return &fakeResource{}, nil })

	h, err := m.Acquire(context.Background(), KindSpeech)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	const n = 5
	order := make(chan int, n)
	var started sync.WaitGroup
	var done sync.WaitGroup
	for i := 0; i < n; i++ {
		i := i
		started.Add(1)
		done.Add(1)
		go func() {
			defer done.Done()
			// Serialize enqueue order: each goroutine waits for its
			// predecessor to be queued before joining.
			for {
				m.mu.Lock()
				queued := len(m.waiters)
				m.mu.Unlock()
				if queued == i {
					break
				}
				time.Sleep(time.Millisecond)
			}
			started.Done()
			hi, err := m.Acquire(context.Background(), KindSpeech)
			if err != nil {
				t.Errorf("Acquire() error = %v", err)
				return
			}
			order <- i
			hi.Release()
		}()
	}

	started.Wait()
	h.Release()
	done.Wait()
	close(order)

	want := 0
	for got := range order {
		if got != want {
			t.Fatalf("service order %d, want %d (FIFO violated)", got, want)
		}
		want++
	}
}

func TestCancelWhileQueued(t *testing.T) {
	m := newTestManager()
	m.Register(KindSpeech, func() (Resource, error) { return &fakeResource{}, nil })

	h, err := m.Acquire(context.Background(), KindSpeech)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := m.Acquire(ctx, KindSpeech)
		errCh <- err
	}()

	// Wait for the waiter to be queued, then cancel it.
	for {
		m.mu.Lock()
		queued := len(m.waiters)
		m.mu.Unlock()
		if queued == 1 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	cancel()

	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Fatalf("queued Acquire() error = %v, want context.Canceled", err)
	}

	// The canceled waiter must leave no residue.
	m.mu.Lock()
	queued := len(m.waiters)
	m.mu.Unlock()
	if queued != 0 {
		t.Errorf("waiter queue length = %d after cancel, want 0", queued)
	}

	h.Release()
	h2, err := m.Acquire(context.Background(), KindSpeech)
	if err != nil {
		t.Fatalf("Acquire() after cancel: %v", err)
	}
	h2.Release()
}
