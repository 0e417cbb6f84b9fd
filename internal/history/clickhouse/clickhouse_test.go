package clickhouse

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/vigil-labs/vigilctl/internal/history"
)

// Integration test against a live ClickHouse; point VIGILCTL_TEST_CLICKHOUSE
// at its native-protocol address (host:9000) to enable it.
func TestClickHouseSink_Integration(t *testing.T) {
	addr := os.Getenv("VIGILCTL_TEST_CLICKHOUSE")
	if addr == "" {
		t.Skip("VIGILCTL_TEST_CLICKHOUSE not set")
	}

	sink, err := New(addr, "agent_lifecycle_test")
	if err != nil {
		t.Fatalf("failed to create ClickHouse sink: %v", err)
	}
	defer func() { _ = sink.Close() }()

	e := history.Event{
		Type:            history.EventToggle,
		OccurredAt:      time.Now().UTC(),
		PID:             999,
		TelegramEnabled: true,
		Detail:          "rolled_back",
	}
	if err := sink.Send(context.Background(), e); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
}

func TestClickHouseSink_BadAddr(t *testing.T) {
	if _, err := New("127.0.0.1:1", "t"); err == nil {
		t.Fatal("expected connection error")
	}
}
