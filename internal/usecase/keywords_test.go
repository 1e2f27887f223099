package usecase

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap/zaptest"

	"yessir/internal/domain"
)

func TestLocalCacheLoadKeywordsNormalizesKeys(t *testing.T) {
	t.Parallel()

	store := newFakeKeywordStore(map[string]string{" Home ": "1 Main St", "WORK": "2 Office Rd"})
	cache := NewLocalCache(newFakeItemStore(), store, zaptest.NewLogger(t))
	if err := cache.LoadKeywords(context.Background()); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	keywords := cache.Keywords()
	if keywords["home"] != "1 Main St" || keywords["work"] != "2 Office Rd" {
		t.Fatalf("unexpected keywords: %+v", keywords)
	}
	if got := cache.Resolve("  HOME "); got != "1 Main St" {
		t.Fatalf("expected alias resolution, got %q", got)
	}
	if got := cache.Resolve("Central Station"); got != "Central Station" {
		t.Fatalf("expected unknown input unchanged, got %q", got)
	}
}

func TestLocalCacheLoadKeywordsFailureIsNotRetained(t *testing.T) {
	t.Parallel()

	store := newFakeKeywordStore(nil)
	store.listErr = errors.New("offline")
	cache := NewLocalCache(newFakeItemStore(), store, zaptest.NewLogger(t))

	if err := cache.LoadKeywords(context.Background()); err == nil {
		t.Fatalf("expected load error")
	}
	if cache.Err() != nil {
		t.Fatalf("keyword load failures must not be retained")
	}
	if len(cache.Keywords()) != 0 {
		t.Fatalf("expected empty alias table")
	}
}

func TestLocalCacheAddKeywordAppliesAfterSave(t *testing.T) {
	t.Parallel()

	store := newFakeKeywordStore(nil)
	cache := NewLocalCache(newFakeItemStore(), store, zaptest.NewLogger(t))

	if err := cache.AddKeyword(context.Background(), " Gym ", "3 Fitness Ave"); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if store.saved["Gym"] != "3 Fitness Ave" {
		t.Fatalf("expected trimmed key sent to backend, got %+v", store.saved)
	}
	if got := cache.Resolve("gym"); got != "3 Fitness Ave" {
		t.Fatalf("expected new alias applied, got %q", got)
	}

	if err := cache.AddKeyword(context.Background(), " ", "x"); !errors.Is(err, ErrInvalidKeyword) {
		t.Fatalf("expected ErrInvalidKeyword, got %v", err)
	}
}

func TestLocalCacheAddKeywordFailureRetainsError(t *testing.T) {
	t.Parallel()

	store := newFakeKeywordStore(nil)
	store.saveErr = errors.New("500")
	cache := NewLocalCache(newFakeItemStore(), store, zaptest.NewLogger(t))

	if err := cache.AddKeyword(context.Background(), "gym", "3 Fitness Ave"); err == nil {
		t.Fatalf("expected save error")
	}
	if _, ok := cache.Keywords()["gym"]; ok {
		t.Fatalf("alias must not be applied on failure")
	}
	listErr := cache.Err()
	if listErr == nil || listErr.Kind != domain.KindKeyword || listErr.Message != "Failed to save keyword: 500" {
		t.Fatalf("unexpected retained error: %+v", listErr)
	}
}

func TestLocalCacheDeleteKeyword(t *testing.T) {
	t.Parallel()

	store := newFakeKeywordStore(map[string]string{"home": "1 Main St", "work": "2 Office Rd"})
	cache := NewLocalCache(newFakeItemStore(), store, zaptest.NewLogger(t))
	if err := cache.LoadKeywords(context.Background()); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	store.deleteErr = errors.New("timeout")
	if err := cache.DeleteKeyword(context.Background(), "home"); err == nil {
		t.Fatalf("expected delete error")
	}
	if cache.Resolve("home") != "1 Main St" {
		t.Fatalf("alias must remain after failed delete")
	}

	store.deleteErr = nil
	if err := cache.DeleteKeyword(context.Background(), "Home"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if cache.Resolve("home") != "home" {
		t.Fatalf("expected alias removed")
	}
	if cache.Resolve("work") != "2 Office Rd" {
		t.Fatalf("expected other alias kept")
	}
}
