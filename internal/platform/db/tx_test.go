package db

import (
	"context"
	"errors"
	"testing"
)

func TestTxFromContext_Nil(t *testing.T) {
	if TxFromContext(context.Background()) != nil {
		t.Error("expected nil tx from empty context")
	}
	if TxFromContext(context.WithValue(context.Background(), DBTxKey, "not-a-tx")) != nil {
		t.Error("expected nil when context value is wrong type")
	}
}

func TestWithTx_NoConnection(t *testing.T) {
	_, tx, err := WithTx(context.Background())
	if !errors.Is(err, ErrNoConnection) {
		t.Errorf("expected ErrNoConnection, got %v", err)
	}
	if tx != nil {
		t.Error("expected nil tx")
	}
}

func TestTransactor_NoPool(t *testing.T) {
	called := false
	err := NewTransactor(nil).InTx(context.Background(), func(ctx context.Context) error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrNoConnection) {
		t.Errorf("expected ErrNoConnection, got %v", err)
	}
	if called {
		t.Error("fn must not run without a transaction")
	}
}

func TestLocalSearchPathSQL(t *testing.T) {
	if got := localSearchPathSQL("north"); got != "SET LOCAL search_path TO tenant_north, shared, public" {
		t.Errorf("unexpected tenant statement %q", got)
	}
	if got := localSearchPathSQL(""); got != "SET LOCAL search_path TO DEFAULT" {
		t.Errorf("a pooled transaction without a tenant must use the default path, got %q", got)
	}
}
