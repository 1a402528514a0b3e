package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/go-redis/redismock/v9"
)

func TestRedisSequence_SetsExpiry(t *testing.T) {
	db, mock := redismock.NewClientMock()
	seq := NewRedisSequence(db)

	mock.ExpectIncr("storefront:orders:seq:20250115").SetVal(1)
	mock.ExpectExpire("storefront:orders:seq:20250115", sequenceTTL).SetVal(true)

	n, err := seq.Next(context.Background(), "20250115")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1, got %d", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestRedisSequence_Increments(t *testing.T) {
	db, mock := redismock.NewClientMock()
	seq := NewRedisSequence(db)

	mock.ExpectIncr("storefront:orders:seq:20250115").SetVal(42)
	mock.ExpectExpire("storefront:orders:seq:20250115", sequenceTTL).SetVal(true)

	n, err := seq.Next(context.Background(), "20250115")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if n != 42 {
		t.Errorf("expected 42, got %d", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestRedisSequence_Error(t *testing.T) {
	db, mock := redismock.NewClientMock()
	seq := NewRedisSequence(db)

	mock.ExpectIncr("storefront:orders:seq:20250115").SetErr(errors.New("connection refused"))

	if _, err := seq.Next(context.Background(), "20250115"); err == nil {
		t.Fatal("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestRedisSequence_ExpireFailureKeepsNumber(t *testing.T) {
	db, mock := redismock.NewClientMock()
	seq := NewRedisSequence(db)
	ctx := context.Background()

	mock.ExpectIncr("storefront:orders:seq:20250115").SetVal(1)
	mock.ExpectExpire("storefront:orders:seq:20250115", sequenceTTL).SetErr(errors.New("timeout"))
	// the next order retries the expiry
	mock.ExpectIncr("storefront:orders:seq:20250115").SetVal(2)
	mock.ExpectExpire("storefront:orders:seq:20250115", sequenceTTL).SetVal(true)

	n, err := seq.Next(ctx, "20250115")
	if err != nil || n != 1 {
		t.Fatalf("expected 1 without error, got %d %v", n, err)
	}
	n, err = seq.Next(ctx, "20250115")
	if err != nil || n != 2 {
		t.Fatalf("expected 2 without error, got %d %v", n, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
