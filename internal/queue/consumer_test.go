package queue

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestStartBorrowConsumerStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	done := make(chan error, 1)
	go func() { done <- StartBorrowConsumer(ctx) }()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not return after cancellation")
	}
}

func TestHandleMessageAppendsLogLine(t *testing.T) {
	t.Chdir(t.TempDir())

	ev := BorrowApprovedEvent{
		BorrowID:   7,
		UserID:     3,
		ApproverID: 2,
		SampleCode: "GZ-001",
		BookTitle:  "Germinal",
		BeginDate:  "2026-09-01",
		EndDate:    "2026-09-15",
		ApprovedAt: "2026-08-31T10:00:00Z",
	}
	body, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := handleMessage(body); err != nil {
		t.Fatalf("handle: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join("logs", "borrow.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	line := string(raw)
	if !strings.Contains(line, "borrow_id=7") || !strings.Contains(line, `sample="GZ-001"`) {
		t.Fatalf("unexpected log line: %q", line)
	}

	if err := handleMessage([]byte("{not json")); err == nil {
		t.Fatal("malformed payload accepted")
	}
}
