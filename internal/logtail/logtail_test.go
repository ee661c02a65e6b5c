package logtail_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"scribe/internal/logtail"
)

func writeLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "job.log")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	return path
}

func TestLastLinesReturnsTail(t *testing.T) {
	path := writeLog(t, "a\nb\nc\n")

	lines, offset, err := logtail.LastLines(path, 2)
	if err != nil {
		t.Fatalf("LastLines: %v", err)
	}
	if len(lines) != 2 || lines[0] != "b" || lines[1] != "c" {
		t.Fatalf("lines = %#v", lines)
	}
	if offset == 0 {
		t.Fatal("offset did not advance")
	}
}

func TestLastLinesMissingFile(t *testing.T) {
	lines, offset, err := logtail.LastLines(filepath.Join(t.TempDir(), "absent.log"), 5)
	if err != nil {
		t.Fatalf("LastLines: %v", err)
	}
	if len(lines) != 0 || offset != 0 {
		t.Fatalf("lines=%v offset=%d", lines, offset)
	}
}

func TestReadFromPicksUpAppends(t *testing.T) {
	path := writeLog(t, "start\n")

	_, offset, err := logtail.LastLines(path, 1)
	if err != nil {
		t.Fatalf("LastLines: %v", err)
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open append: %v", err)
	}
	if _, err := file.WriteString("later\n"); err != nil {
		t.Fatalf("append: %v", err)
	}
	file.Close()

	lines, newOffset, err := logtail.ReadFrom(path, offset)
	if err != nil {
		t.Fatalf("ReadFrom: %v", err)
	}
	if len(lines) != 1 || lines[0] != "later" {
		t.Fatalf("lines = %#v", lines)
	}
	if newOffset <= offset {
		t.Fatal("offset did not advance")
	}
}

func TestWaitReturnsOnAppend(t *testing.T) {
	path := writeLog(t, "start\n")
	_, offset, err := logtail.LastLines(path, 1)
	if err != nil {
		t.Fatalf("LastLines: %v", err)
	}

	done := make(chan []string, 1)
	go func() {
		lines, _, err := logtail.Wait(context.Background(), path, offset, 5*time.Second)
		if err != nil {
			t.Errorf("Wait: %v", err)
		}
		done <- lines
	}()

	time.Sleep(100 * time.Millisecond)
	file, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open append: %v", err)
	}
	if _, err := file.WriteString("later\n"); err != nil {
		t.Fatalf("append: %v", err)
	}
	file.Close()

	select {
	case lines := <-done:
		if len(lines) != 1 || lines[0] != "later" {
			t.Fatalf("lines = %#v", lines)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Wait did not observe the append")
	}
}
