package store

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cwbudde/xcfit/internal/fit"
	"github.com/cwbudde/xcfit/internal/xc"
)

func TestTraceWriter_WriteAndRead(t *testing.T) {
	tmpDir := t.TempDir()
	runID := "trace-run"

	writer, err := NewTraceWriter(tmpDir, runID, false)
	if err != nil {
		t.Fatalf("Failed to create trace writer: %v", err)
	}

	entries := []TraceEntry{
		{Iteration: 0, Loss: 1.0, Timestamp: time.Now()},
		{Iteration: 1, Loss: 0.5, Timestamp: time.Now(), Params: map[string]float64{"c_x": 0.7}},
		{Iteration: 2, Loss: 0.25, Timestamp: time.Now()},
	}
	for _, entry := range entries {
		if err := writer.Write(entry); err != nil {
			t.Fatalf("Failed to write entry: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Failed to close writer: %v", err)
	}

	expected := filepath.Join(tmpDir, "runs", runID, "trace.jsonl")
	if writer.Path() != expected {
		t.Errorf("Expected trace path %s, got %s", expected, writer.Path())
	}

	reader, err := NewTraceReader(tmpDir, runID)
	if err != nil {
		t.Fatalf("Failed to create trace reader: %v", err)
	}
	defer reader.Close()

	got, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("Failed to read entries: %v", err)
	}
	if len(got) != len(entries) {
		t.Fatalf("Expected %d entries, got %d", len(entries), len(got))
	}
	for i := range entries {
		if got[i].Iteration != entries[i].Iteration || got[i].Loss != entries[i].Loss {
			t.Errorf("Entry %d: expected %+v, got %+v", i, entries[i], got[i])
		}
	}
	if got[0].Params != nil {
		t.Errorf("Expected no params on entry 0, got %v", got[0].Params)
	}
	if got[1].Params["c_x"] != 0.7 {
		t.Errorf("Expected c_x 0.7 on entry 1, got %v", got[1].Params)
	}
}

func TestTraceWriter_Append(t *testing.T) {
	tmpDir := t.TempDir()
	runID := "append-run"

	for i, appendMode := range []bool{false, true} {
		writer, err := NewTraceWriter(tmpDir, runID, appendMode)
		if err != nil {
			t.Fatalf("Failed to create trace writer: %v", err)
		}
		if err := writer.Write(TraceEntry{Iteration: i, Loss: 1, Timestamp: time.Now()}); err != nil {
			t.Fatalf("Failed to write entry: %v", err)
		}
		if err := writer.Close(); err != nil {
			t.Fatalf("Failed to close writer: %v", err)
		}
	}

	reader, err := NewTraceReader(tmpDir, runID)
	if err != nil {
		t.Fatalf("Failed to create trace reader: %v", err)
	}
	defer reader.Close()

	entries, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("Failed to read entries: %v", err)
	}
	if len(entries) != 2 || entries[0].Iteration != 0 || entries[1].Iteration != 1 {
		t.Errorf("Expected both entries in order, got %+v", entries)
	}
}

func TestTraceWriter_Flush(t *testing.T) {
	tmpDir := t.TempDir()

	writer, err := NewTraceWriter(tmpDir, "flush-run", false)
	if err != nil {
		t.Fatalf("Failed to create trace writer: %v", err)
	}
	defer writer.Close()

	if err := writer.Write(TraceEntry{Iteration: 0, Loss: 1.0, Timestamp: time.Now()}); err != nil {
		t.Fatalf("Failed to write entry: %v", err)
	}
	if err := writer.Flush(); err != nil {
		t.Fatalf("Failed to flush: %v", err)
	}

	data, err := os.ReadFile(writer.Path())
	if err != nil {
		t.Fatalf("Failed to read trace file: %v", err)
	}
	if len(data) == 0 {
		t.Error("Trace file is empty after flush")
	}
}

func TestTraceWriter_Observe(t *testing.T) {
	tmpDir := t.TempDir()
	runID := "observe-run"

	writer, err := NewTraceWriter(tmpDir, runID, false)
	if err != nil {
		t.Fatalf("Failed to create trace writer: %v", err)
	}

	var observer fit.Observer = writer.Observe
	observer(fit.Progress{Iteration: 0, Loss: 2.0, Params: xc.Params{"a0": 0.2}})
	observer(fit.Progress{Iteration: 1, Loss: 1.0, Params: xc.Params{"a0": 0.21}})

	if err := writer.Err(); err != nil {
		t.Fatalf("Unexpected observe error: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Failed to close writer: %v", err)
	}

	reader, err := NewTraceReader(tmpDir, runID)
	if err != nil {
		t.Fatalf("Failed to create trace reader: %v", err)
	}
	defer reader.Close()

	entries, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("Failed to read entries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if entries[1].Loss != 1.0 || entries[1].Params["a0"] != 0.21 {
		t.Errorf("Unexpected entry %+v", entries[1])
	}
	if entries[0].Timestamp.IsZero() {
		t.Error("Expected observe to stamp entries")
	}
}

func TestTraceReader_ReadIteratively(t *testing.T) {
	tmpDir := t.TempDir()
	runID := "iter-run"

	writer, err := NewTraceWriter(tmpDir, runID, false)
	if err != nil {
		t.Fatalf("Failed to create trace writer: %v", err)
	}
	for i := 0; i < 5; i++ {
		if err := writer.Write(TraceEntry{Iteration: i, Loss: 1.0 / float64(i+1), Timestamp: time.Now()}); err != nil {
			t.Fatalf("Failed to write entry: %v", err)
		}
	}
	writer.Close()

	reader, err := NewTraceReader(tmpDir, runID)
	if err != nil {
		t.Fatalf("Failed to create trace reader: %v", err)
	}
	defer reader.Close()

	count := 0
	for {
		entry, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Failed to read entry: %v", err)
		}
		if entry.Iteration != count {
			t.Errorf("Entry %d: expected iteration %d, got %d", count, count, entry.Iteration)
		}
		count++
	}
	if count != 5 {
		t.Errorf("Expected to read 5 entries, got %d", count)
	}
}

func TestTraceReader_NotFound(t *testing.T) {
	_, err := NewTraceReader(t.TempDir(), "nonexistent-run")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected NotFoundError, got: %v", err)
	}
}

func TestTraceReader_Corrupt(t *testing.T) {
	tmpDir := t.TempDir()
	dir := filepath.Join(tmpDir, "runs", "corrupt")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "trace.jsonl"), []byte("{\"iteration\": 0}\nnot json\n"), 0644); err != nil {
		t.Fatal(err)
	}

	reader, err := NewTraceReader(tmpDir, "corrupt")
	if err != nil {
		t.Fatalf("Failed to create trace reader: %v", err)
	}
	defer reader.Close()

	if _, err := reader.ReadAll(); err == nil {
		t.Error("Expected error for corrupt trace line")
	}
}

func TestTraceWriter_ConcurrentWrites(t *testing.T) {
	tmpDir := t.TempDir()
	runID := "concurrent-run"

	writer, err := NewTraceWriter(tmpDir, runID, false)
	if err != nil {
		t.Fatalf("Failed to create trace writer: %v", err)
	}
	defer writer.Close()

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func(iter int) {
			writer.Observe(fit.Progress{Iteration: iter, Loss: float64(iter)})
			done <- true
		}(i)
	}
	for i := 0; i < 10; i++ {
		<-done
	}
	writer.Flush()

	reader, err := NewTraceReader(tmpDir, runID)
	if err != nil {
		t.Fatalf("Failed to create trace reader: %v", err)
	}
	defer reader.Close()

	entries, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("Failed to read entries: %v", err)
	}
	if len(entries) != 10 {
		t.Errorf("Expected 10 entries, got %d", len(entries))
	}
}

func TestTraceWriter_CloseTwice(t *testing.T) {
	writer, err := NewTraceWriter(t.TempDir(), "close-run", false)
	if err != nil {
		t.Fatalf("Failed to create trace writer: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("First close failed: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Errorf("Second close should be a no-op, got %v", err)
	}
}
