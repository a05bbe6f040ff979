package mongo

import (
	"context"
	"testing"
	"time"
)

func TestConnect_RejectsBadURI(t *testing.T) {
	if _, _, err := Connect(context.Background(), Config{URI: "not-a-mongo-uri", Database: "tlobni"}); err == nil {
		t.Fatalf("expected error for malformed uri")
	}
}

func TestUnixToTime(t *testing.T) {
	if !unixToTime(0).IsZero() {
		t.Fatalf("zero timestamp must map to zero time")
	}
	want := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	if got := unixToTime(want.Unix()); !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}
