package buffer

import (
	"errors"
	"io"
	"testing"
	"time"
)

func TestFrameRing_AddNext(t *testing.T) {
	r := NewFrameRing[int](4)
	for i := 1; i <= 3; i++ {
		if err := r.Add(i); err != nil {
			t.Fatalf("Add(%d) error: %v", i, err)
		}
	}
	if r.Len() != 3 {
		t.Errorf("Len = %d, want 3", r.Len())
	}
	for i := 1; i <= 3; i++ {
		got, err := r.Next()
		if err != nil {
			t.Fatalf("Next error: %v", err)
		}
		if got != i {
			t.Errorf("Next = %d, want %d", got, i)
		}
	}
}

func TestFrameRing_OverwritesOldest(t *testing.T) {
	r := NewFrameRing[int](2)
	for i := 1; i <= 5; i++ {
		r.Add(i)
	}
	if r.Dropped() != 3 {
		t.Errorf("Dropped = %d, want 3", r.Dropped())
	}
	got, _ := r.Next()
	if got != 4 {
		t.Errorf("Next = %d, want 4 (oldest surviving frame)", got)
	}
	got, _ = r.Next()
	if got != 5 {
		t.Errorf("Next = %d, want 5", got)
	}
}

func TestFrameRing_NextBlocksUntilAdd(t *testing.T) {
	r := NewFrameRing[string](2)
	done := make(chan string, 1)
	go func() {
		v, err := r.Next()
		if err != nil {
			done <- "err:" + err.Error()
			return
		}
		done <- v
	}()

	time.Sleep(10 * time.Millisecond)
	r.Add("frame")

	select {
	case v := <-done:
		if v != "frame" {
			t.Errorf("Next = %q, want \"frame\"", v)
		}
	case <-time.After(time.Second):
		t.Fatal("Next did not unblock after Add")
	}
}

func TestFrameRing_CloseWriteDrainsToEOF(t *testing.T) {
	r := NewFrameRing[int](4)
	r.Add(7)
	r.CloseWrite()

	if err := r.Add(8); err == nil {
		t.Error("Add after CloseWrite should fail")
	}

	got, err := r.Next()
	if err != nil || got != 7 {
		t.Fatalf("Next = %d, %v; want 7, nil", got, err)
	}
	if _, err := r.Next(); err != io.EOF {
		t.Errorf("Next after drain = %v, want io.EOF", err)
	}
}

func TestFrameRing_CloseWithError(t *testing.T) {
	r := NewFrameRing[int](4)
	errBoom := errors.New("boom")

	done := make(chan error, 1)
	go func() {
		_, err := r.Next()
		done <- err
	}()
	time.Sleep(10 * time.Millisecond)
	r.CloseWithError(errBoom)

	select {
	case err := <-done:
		if !errors.Is(err, errBoom) {
			t.Errorf("Next error = %v, want boom", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Next did not unblock on close")
	}

	// Close twice is safe.
	r.CloseWithError(nil)
	r.CloseWrite()
}
