package db

import (
	"context"
	"errors"
	"testing"
)

func TestSerialRunner_Order(t *testing.T) {
	var got []int
	err := SerialRunner{}.Run(context.Background(),
		func(context.Context) error { got = append(got, 1); return nil },
		func(context.Context) error { got = append(got, 2); return nil },
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("expected [1 2], got %v", got)
	}
}

func TestSerialRunner_StopsOnError(t *testing.T) {
	boom := errors.New("boom")
	called := false
	err := SerialRunner{}.Run(context.Background(),
		func(context.Context) error { return boom },
		func(context.Context) error { called = true; return nil },
	)
	if !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
	if called {
		t.Error("second fn must not run after an error")
	}
}

func TestPoolRunner_NoPoolFallsBackToSerial(t *testing.T) {
	n := 0
	err := NewRunner(nil, 3).Run(context.Background(),
		func(context.Context) error { n++; return nil },
		func(context.Context) error { n++; return nil },
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Errorf("expected both fns to run, got %d", n)
	}
}
