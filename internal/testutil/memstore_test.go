package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/starford/dayroll/internal/notion"
)

func TestMemStore_CreateRejectsUnknownProperty(t *testing.T) {
	m := NewTaskStore()
	_, err := m.CreatePage(context.Background(), DailyDB, notion.Properties{
		"Name": notion.Title("x"),
	})
	var apiErr *notion.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != 400 {
		t.Fatalf("err = %v, want 400 validation error", err)
	}
	if m.Creates != 0 {
		t.Errorf("creates = %d, want 0", m.Creates)
	}
	if _, err := m.CreatePage(context.Background(), DailyDB, notion.Properties{
		"Title": notion.Title("x"),
	}); err != nil {
		t.Errorf("known property rejected: %v", err)
	}
}
