package service

import (
	"context"
	"errors"
	"testing"
)

func TestNormalizeLimit(t *testing.T) {
	cases := map[int]int{-5: 20, 0: 20, 1: 1, 20: 20, 100: 100, 500: 100}
	for in, want := range cases {
		if got := NormalizeLimit(in); got != want {
			t.Fatalf("NormalizeLimit(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestHistoryService_DelegatesToRepo(t *testing.T) {
	repo := &mockConsultationRepo{}
	svc := NewHistoryService(repo)

	if _, err := svc.ListRecent(context.Background(), 0); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if repo.listLimit != DefaultHistoryLimit {
		t.Fatalf("expected default limit, got %d", repo.listLimit)
	}
	if _, err := svc.ListLegacy(context.Background(), 7); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if repo.listLimit != 7 {
		t.Fatalf("expected limit 7, got %d", repo.listLimit)
	}
	if err := svc.ClearAll(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !repo.clearCalled {
		t.Fatalf("expected clear to reach repository")
	}
}

func TestHistoryService_NotConfigured(t *testing.T) {
	var svc *HistoryService
	if _, err := svc.ListRecent(context.Background(), 1); !errors.Is(err, ErrHistoryServiceNotConfigured) {
		t.Fatalf("expected ErrHistoryServiceNotConfigured, got %v", err)
	}
	if err := NewHistoryService(nil).ClearAll(context.Background()); !errors.Is(err, ErrHistoryServiceNotConfigured) {
		t.Fatalf("expected ErrHistoryServiceNotConfigured, got %v", err)
	}
}
