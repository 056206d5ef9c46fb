package tradelog

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"autotrader/internal/events"
)

func TestJournalWritesDailyFiles(t *testing.T) {
	dir := t.TempDir()
	j := NewJournal(dir, time.UTC)
	ctx := context.Background()

	day1 := time.Date(2024, 3, 6, 10, 0, 0, 0, time.UTC)
	day2 := day1.Add(24 * time.Hour)
	if err := j.Handle(ctx, events.Event{Kind: events.KindTrade, At: day1, Payload: map[string]any{"symbol": "AAPL"}}); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if err := j.Handle(ctx, events.Event{Kind: events.KindRun, At: day2, Payload: "ok"}); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	f, err := os.Open(filepath.Join(dir, "2024-03-06.jsonl"))
	if err != nil {
		t.Fatalf("Expected day file: %v", err)
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	if !sc.Scan() {
		t.Fatal("Expected one journal line")
	}
	var line map[string]any
	if err := json.Unmarshal(sc.Bytes(), &line); err != nil {
		t.Fatalf("Expected JSON line, got %q: %v", sc.Text(), err)
	}
	if line["kind"] != "trade" {
		t.Errorf("Expected kind trade, got %v", line["kind"])
	}
	payload, _ := line["payload"].(map[string]any)
	if payload["symbol"] != "AAPL" {
		t.Errorf("Expected payload symbol AAPL, got %v", line["payload"])
	}

	if _, err := os.Stat(filepath.Join(dir, "2024-03-07.jsonl")); err != nil {
		t.Errorf("Expected second day file: %v", err)
	}
}

func TestCompressOlder(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "2024-01-01.jsonl")
	fresh := filepath.Join(dir, "2024-01-02.jsonl")
	for _, p := range []string{old, fresh} {
		if err := os.WriteFile(p, []byte("{}\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	past := time.Now().AddDate(0, 0, -10)
	if err := os.Chtimes(old, past, past); err != nil {
		t.Fatal(err)
	}

	n, err := CompressOlder(dir, 7)
	if err != nil {
		t.Fatalf("CompressOlder failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 compressed file, got %d", n)
	}
	if _, err := os.Stat(old + ".gz"); err != nil {
		t.Errorf("Expected gzip file: %v", err)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Errorf("Expected original removed, got %v", err)
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Errorf("Expected fresh file kept: %v", err)
	}
}
