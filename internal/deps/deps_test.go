package deps

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"scribe/internal/testsupport"
)

func TestCheckBinariesReportsMissing(t *testing.T) {
	statuses := CheckBinaries(context.Background(), []Requirement{
		{Name: "Ghost", Command: "definitely-not-on-path-xyz"},
	})
	if len(statuses) != 1 {
		t.Fatalf("statuses = %+v", statuses)
	}
	if statuses[0].Available {
		t.Error("missing binary reported available")
	}
	if statuses[0].Detail == "" {
		t.Error("missing binary has no detail")
	}
}

func TestCheckBinariesFindsStub(t *testing.T) {
	binDir := filepath.Join(t.TempDir(), "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	stub := filepath.Join(binDir, "fakeprobe")
	if err := os.WriteFile(stub, []byte("#!/bin/sh\necho fakeprobe version 1.2.3\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))

	statuses := CheckBinaries(context.Background(), []Requirement{
		{Name: "Probe", Command: "fakeprobe", VersionArg: "--version"},
	})
	if !statuses[0].Available {
		t.Fatalf("stub not found: %+v", statuses[0])
	}
	if statuses[0].Detail != "fakeprobe version 1.2.3" {
		t.Errorf("detail = %q", statuses[0].Detail)
	}
}

func TestRequirementsCoverAllEngines(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	reqs := Requirements(cfg)
	if len(reqs) != 4 {
		t.Fatalf("requirements = %+v", reqs)
	}
	commands := map[string]bool{}
	for _, req := range reqs {
		commands[req.Command] = true
	}
	for _, want := range []string{"ffmpeg", "ffprobe", "whisper-cli", "yt-dlp"} {
		if !commands[want] {
			t.Errorf("missing requirement for %s", want)
		}
	}
}
