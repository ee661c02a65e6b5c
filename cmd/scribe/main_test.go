package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeTestConfig materializes a config file pointing at temp directories and
// returns its path.
func writeTestConfig(t *testing.T) string {
	t.Helper()
	base := t.TempDir()
	path := filepath.Join(base, "config.toml")
	content := fmt.Sprintf(`[paths]
queue_dir = %q
work_dir = %q
done_dir = %q
failed_dir = %q
log_dir = %q
url_list = %q

[transcription]
model_dir = %q
`,
		filepath.Join(base, "queue"),
		filepath.Join(base, "work"),
		filepath.Join(base, "done"),
		filepath.Join(base, "failed"),
		filepath.Join(base, "logs"),
		filepath.Join(base, "queue", "urls.txt"),
		filepath.Join(base, "models"),
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestQueueListEmpty(t *testing.T) {
	cfgPath := writeTestConfig(t)

	output, err := runCommand(t, "--config", cfgPath, "queue", "list")
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	if !strings.Contains(output, "Queue is empty") {
		t.Errorf("unexpected output: %q", output)
	}
}

func TestQueueListRejectsUnknownStatus(t *testing.T) {
	cfgPath := writeTestConfig(t)

	_, err := runCommand(t, "--config", cfgPath, "queue", "list", "--status", "bogus")
	if err == nil {
		t.Fatal("expected error for unknown status")
	}
}

func TestQueueAddCopiesFile(t *testing.T) {
	cfgPath := writeTestConfig(t)
	source := filepath.Join(t.TempDir(), "talk.mp3")
	if err := os.WriteFile(source, []byte("media"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	output, err := runCommand(t, "--config", cfgPath, "queue", "add", source)
	if err != nil {
		t.Fatalf("queue add: %v", err)
	}
	if !strings.Contains(output, "Queued talk.mp3") {
		t.Errorf("unexpected output: %q", output)
	}

	queued := filepath.Join(filepath.Dir(cfgPath), "queue", "talk.mp3")
	if _, err := os.Stat(queued); err != nil {
		t.Errorf("file not in queue dir: %v", err)
	}
	if _, err := os.Stat(source); err != nil {
		t.Errorf("source removed despite copy mode: %v", err)
	}
}

func TestQueueAddMoveConsumesSource(t *testing.T) {
	cfgPath := writeTestConfig(t)
	source := filepath.Join(t.TempDir(), "talk.mp3")
	if err := os.WriteFile(source, []byte("media"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	if _, err := runCommand(t, "--config", cfgPath, "queue", "add", "--move", source); err != nil {
		t.Fatalf("queue add --move: %v", err)
	}
	if _, err := os.Stat(source); !os.IsNotExist(err) {
		t.Errorf("source still present after move: %v", err)
	}
}

func TestQueueAddURLAppends(t *testing.T) {
	cfgPath := writeTestConfig(t)

	for _, url := range []string{"https://example.com/a", "https://example.com/b"} {
		if _, err := runCommand(t, "--config", cfgPath, "queue", "add-url", url); err != nil {
			t.Fatalf("queue add-url: %v", err)
		}
	}

	data, err := os.ReadFile(filepath.Join(filepath.Dir(cfgPath), "queue", "urls.txt"))
	if err != nil {
		t.Fatalf("read url list: %v", err)
	}
	if got := string(data); got != "https://example.com/a\nhttps://example.com/b\n" {
		t.Errorf("url list = %q", got)
	}
}

func TestQueueRetryWithNoFailures(t *testing.T) {
	cfgPath := writeTestConfig(t)

	output, err := runCommand(t, "--config", cfgPath, "queue", "retry")
	if err != nil {
		t.Fatalf("queue retry: %v", err)
	}
	if !strings.Contains(output, "Reset 0 failed jobs") {
		t.Errorf("unexpected output: %q", output)
	}
}

func TestQueueListJSONEmitsArray(t *testing.T) {
	cfgPath := writeTestConfig(t)

	output, err := runCommand(t, "--config", cfgPath, "queue", "list", "--json")
	if err != nil {
		t.Fatalf("queue list --json: %v", err)
	}
	if !strings.HasPrefix(strings.TrimSpace(output), "[") {
		t.Errorf("expected a JSON array, got %q", output)
	}
}

func TestConfigShowPrintsResolvedConfig(t *testing.T) {
	cfgPath := writeTestConfig(t)

	output, err := runCommand(t, "--config", cfgPath, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(output, "[transcription]") {
		t.Errorf("resolved config missing transcription section: %q", output)
	}
	if !strings.Contains(output, filepath.Join(filepath.Dir(cfgPath), "queue")) {
		t.Errorf("resolved config missing queue dir: %q", output)
	}
}

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "scribe", "config.toml")

	output, err := runCommand(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(output, "Wrote sample configuration") {
		t.Errorf("unexpected output: %q", output)
	}
	if _, err := os.Stat(target); err != nil {
		t.Errorf("sample config missing: %v", err)
	}

	if _, err := runCommand(t, "config", "init", "--path", target); err == nil {
		t.Fatal("second init without --overwrite should fail")
	}
	if _, err := runCommand(t, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}
