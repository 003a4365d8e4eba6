package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestLeaseFailFast(t *testing.T) {
	lease := newKeyedLease()
	id := uuid.New()

	release, err := lease.Acquire(context.Background(), id, false)
	if err != nil {
		t.Fatalf("first Acquire() error = %v", err)
	}

	if _, err := lease.Acquire(context.Background(), id, false); !errors.Is(err, ErrThreadBusy) {
		t.Errorf("second Acquire() error = %v, want ErrThreadBusy", err)
	}

	release()

	release2, err := lease.Acquire(context.Background(), id, false)
	if err != nil {
		t.Fatalf("Acquire() after release error = %v", err)
	}
	release2()
}

func TestLeaseIndependentThreads(t *testing.T) {
	lease := newKeyedLease()

	releaseA, err := lease.Acquire(context.Background(), uuid.New(), false)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer releaseA()

	releaseB, err := lease.Acquire(context.Background(), uuid.New(), false)
	if err != nil {
		t.Fatalf("Acquire() on second thread error = %v", err)
	}
	releaseB()
}

func TestLeaseWaitBlocksUntilRelease(t *testing.T) {
	lease := newKeyedLease()
	id := uuid.New()

	release, err := lease.Acquire(context.Background(), id, false)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	acquired := make(chan struct{})
	go func() {
		r, err := lease.Acquire(context.Background(), id, true)
		if err != nil {
			t.Errorf("waiting Acquire() error = %v", err)
			close(acquired)
			return
		}
		r()
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("waiting Acquire() returned before release")
	case <-time.After(20 * time.Millisecond):
	}

	release()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("waiting Acquire() did not return after release")
	}
}

func TestLeaseWaitHonorsContext(t *testing.T) {
	lease := newKeyedLease()
	id := uuid.New()

	release, err := lease.Acquire(context.Background(), id, true)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := lease.Acquire(ctx, id, true); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Acquire() error = %v, want context.DeadlineExceeded", err)
	}
}
