package ai

import (
	"context"
	"testing"
	"time"
)

func TestNewPacerDisabled(t *testing.T) {
	t.Parallel()

	pacer := NewPacer(0)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	for i := 0; i < 100; i++ {
		if err := pacer.Wait(ctx); err != nil {
			t.Fatalf("unexpected wait error: %v", err)
		}
	}
}

func TestNewPacerSpacesCalls(t *testing.T) {
	t.Parallel()

	pacer := NewPacer(60)
	if !pacer.Allow() {
		t.Fatal("expected the first call to pass")
	}
	if pacer.Allow() {
		t.Fatal("expected the second immediate call to be paced")
	}
}
