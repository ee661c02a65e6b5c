package workflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"scribe/internal/config"
	"scribe/internal/jobstate"
	"scribe/internal/logging"
	"scribe/internal/queue"
	"scribe/internal/testsupport"
)

// writeStub installs an executable shell script into the test bin directory.
func writeStub(t *testing.T, binDir, name, script string) {
	t.Helper()
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		t.Fatalf("mkdir bin dir: %v", err)
	}
	path := filepath.Join(binDir, name)
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}
}

// installEngines stubs all four collaborators. ffprobe reports the given
// duration, ffmpeg materializes its destination argument, whisper-cli writes
// the output triple, yt-dlp drops input.mp3 into its target directory.
func installEngines(t *testing.T, durationSeconds float64) {
	t.Helper()
	binDir := filepath.Join(t.TempDir(), "bin")

	writeStub(t, binDir, "ffprobe", fmt.Sprintf(`#!/bin/sh
printf '{"streams":[{"codec_type":"audio"}],"format":{"duration":"%.1f"}}'
`, durationSeconds))

	writeStub(t, binDir, "ffmpeg", `#!/bin/sh
for last; do :; done
printf 'RIFFdata' > "$last"
`)

	writeStub(t, binDir, "whisper-cli", `#!/bin/sh
prefix=""
prev=""
for arg; do
  if [ "$prev" = "-of" ]; then prefix="$arg"; fi
  prev="$arg"
done
printf 'hello world\n' > "$prefix.txt"
printf '1\n00:00:00,000 --> 00:00:02,000\nhello world\n\n' > "$prefix.srt"
printf '{"result":{"language":"en"},"transcription":[{"offsets":{"from":0,"to":2000},"text":"hello world"}]}\n' > "$prefix.json"
`)

	writeStub(t, binDir, "yt-dlp", `#!/bin/sh
dest=""
prev=""
for arg; do
  if [ "$prev" = "-P" ]; then dest="$arg"; fi
  prev="$arg"
done
printf 'media' > "$dest/input.mp3"
`)

	t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
}

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithModel("small"))
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	testsupport.WriteFile(t, filepath.Join(cfg.Transcription.ModelDir, "ggml-small.bin"), 16)
	return cfg
}

func TestRunCompletesLocalJobSinglePass(t *testing.T) {
	installEngines(t, 120)
	cfg := newTestConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	source := filepath.Join(cfg.Paths.QueueDir, "talk.mp3")
	testsupport.WriteText(t, source, "fake media")

	manager := NewManager(cfg, store, logging.NewNop())
	summary, err := manager.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Enqueued != 1 || summary.Completed != 1 || summary.Failed != 0 {
		t.Fatalf("summary = %+v, want 1 enqueued, 1 completed", summary)
	}

	jobs, err := store.List(context.Background(), queue.StatusCompleted)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("completed jobs = %+v", jobs)
	}
	identity := jobs[0].Identity
	for _, ext := range []string{".txt", ".srt", ".json"} {
		if _, err := os.Stat(filepath.Join(cfg.Paths.DoneDir, identity+ext)); err != nil {
			t.Errorf("done dir missing %s: %v", identity+ext, err)
		}
	}

	// The queue drains destructively: the source moved into the workspace.
	if _, err := os.Stat(source); !os.IsNotExist(err) {
		t.Errorf("queued file still present after run: %v", err)
	}

	job, err := store.FindActiveByIdentity(context.Background(), identity)
	if err != nil {
		t.Fatalf("FindActiveByIdentity: %v", err)
	}
	if job != nil {
		t.Fatalf("job still active after completion: %+v", job)
	}
	if jobs[0].ChunkCount != 0 {
		t.Errorf("short job took the chunked path: %d chunks", jobs[0].ChunkCount)
	}
}

func TestRunChunksLongJobAndStitches(t *testing.T) {
	installEngines(t, 1800)
	cfg := newTestConfig(t)
	cfg.Transcription.ChunkSeconds = 600
	store := testsupport.MustOpenStore(t, cfg)

	source := filepath.Join(cfg.Paths.QueueDir, "lecture.mp3")
	testsupport.WriteText(t, source, "fake media")

	manager := NewManager(cfg, store, logging.NewNop())
	summary, err := manager.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Completed != 1 {
		t.Fatalf("summary = %+v, want 1 completed", summary)
	}

	jobs, err := store.List(context.Background(), queue.StatusCompleted)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(jobs) != 1 || jobs[0].ChunkCount != 3 {
		t.Fatalf("want 1 completed job with 3 chunks, got %+v", jobs)
	}
	identity := jobs[0].Identity

	text, err := os.ReadFile(filepath.Join(cfg.Paths.DoneDir, identity+".txt"))
	if err != nil {
		t.Fatalf("read stitched text: %v", err)
	}
	if got := strings.Count(string(text), "hello world"); got != 3 {
		t.Errorf("stitched text has %d chunk transcripts, want 3:\n%s", got, text)
	}

	srt, err := os.ReadFile(filepath.Join(cfg.Paths.DoneDir, identity+".srt"))
	if err != nil {
		t.Fatalf("read stitched srt: %v", err)
	}
	// Third chunk starts at 2 x 600s, so its cue shifts to 20 minutes.
	if !strings.Contains(string(srt), "00:20:00,000 --> 00:20:02,000") {
		t.Errorf("stitched srt missing shifted cue:\n%s", srt)
	}
	if !strings.HasPrefix(strings.TrimSpace(string(srt)), "1\n") {
		t.Errorf("stitched srt not renumbered from 1:\n%s", srt)
	}
}

func TestRunDrainsURLList(t *testing.T) {
	installEngines(t, 90)
	cfg := newTestConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	url := "https://example.com/watch?v=abc123"
	testsupport.WriteText(t, cfg.Paths.URLList, "# queued uploads\n"+url+"\n\n")

	manager := NewManager(cfg, store, logging.NewNop())
	summary, err := manager.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Enqueued != 1 || summary.Completed != 1 {
		t.Fatalf("summary = %+v, want 1 enqueued and completed", summary)
	}

	data, err := os.ReadFile(cfg.Paths.URLList)
	if err != nil {
		t.Fatalf("read url list: %v", err)
	}
	if len(data) != 0 {
		t.Errorf("url list not drained: %q", data)
	}

	jobs, err := store.List(context.Background(), queue.StatusCompleted)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(jobs) != 1 || jobs[0].SourcePath != url {
		t.Fatalf("completed jobs = %+v", jobs)
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.DoneDir, jobs[0].Identity+".txt")); err != nil {
		t.Errorf("done dir missing url transcript: %v", err)
	}
}

func TestRunDrainsLocalCategoryBeforeURLDownloads(t *testing.T) {
	installEngines(t, 90)
	cfg := newTestConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	for _, name := range []string{"first.mp3", "second.mp3"} {
		testsupport.WriteText(t, filepath.Join(cfg.Paths.QueueDir, name), "fake media")
	}
	testsupport.WriteText(t, cfg.Paths.URLList, "https://example.com/late\n")

	// This yt-dlp refuses to run while queued media remains, so the run only
	// succeeds if the local category fully drains first.
	binDir := filepath.Join(t.TempDir(), "orderbin")
	writeStub(t, binDir, "yt-dlp", fmt.Sprintf(`#!/bin/sh
for f in %q/*.mp3; do
  if [ -e "$f" ]; then
    echo "queue not drained before download" >&2
    exit 1
  fi
done
dest=""
prev=""
for arg; do
  if [ "$prev" = "-P" ]; then dest="$arg"; fi
  prev="$arg"
done
printf 'media' > "$dest/input.mp3"
`, cfg.Paths.QueueDir))
	t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))

	manager := NewManager(cfg, store, logging.NewNop())
	summary, err := manager.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Completed != 3 || summary.Failed != 0 {
		t.Fatalf("summary = %+v, want 3 completed", summary)
	}
}

func TestRunFailsJobAfterRetryBudget(t *testing.T) {
	installEngines(t, 120)
	cfg := newTestConfig(t)
	cfg.Retry.MaxRetries = 1

	// Probing always fails, so ingest burns the budget.
	binDir := filepath.Join(t.TempDir(), "badbin")
	writeStub(t, binDir, "ffprobe", "#!/bin/sh\nexit 1\n")
	t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))

	store := testsupport.MustOpenStore(t, cfg)
	source := filepath.Join(cfg.Paths.QueueDir, "broken.mp3")
	testsupport.WriteText(t, source, "fake media")

	manager := NewManager(cfg, store, logging.NewNop())
	summary, err := manager.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Failed != 1 || summary.Completed != 0 {
		t.Fatalf("summary = %+v, want 1 failed", summary)
	}

	jobs, err := store.List(context.Background(), queue.StatusFailed)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("failed jobs = %+v", jobs)
	}
	identity := jobs[0].Identity
	if jobs[0].Attempts != cfg.Retry.MaxRetries {
		t.Errorf("attempts = %d, want %d", jobs[0].Attempts, cfg.Retry.MaxRetries)
	}
	if jobs[0].ErrorMessage == "" {
		t.Error("failed job has no error message")
	}

	failedDir := filepath.Join(cfg.Paths.FailedDir, identity)
	if _, err := os.Stat(filepath.Join(failedDir, jobstate.FileName)); err != nil {
		t.Errorf("failed workspace missing state record: %v", err)
	}
	if _, err := os.Stat(filepath.Join(failedDir, "job.log")); err != nil {
		t.Errorf("failed workspace missing job log: %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.WorkDir, identity)); !os.IsNotExist(err) {
		t.Errorf("workspace still under work dir after failure: %v", err)
	}
}

func TestRunAdoptsOrphanedWorkspace(t *testing.T) {
	installEngines(t, 120)
	cfg := newTestConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	// A workspace with normalized audio but no catalog row, as after losing
	// the catalog mid-run. Artifact recovery restarts at audio_ready.
	identity := "orphan-talk-12345678"
	dir := filepath.Join(cfg.Paths.WorkDir, identity)
	testsupport.WriteFile(t, filepath.Join(dir, "audio.wav"), 64)

	manager := NewManager(cfg, store, logging.NewNop())
	summary, err := manager.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Enqueued != 1 || summary.Completed != 1 {
		t.Fatalf("summary = %+v, want adopted workspace completed", summary)
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.DoneDir, identity+".txt")); err != nil {
		t.Errorf("done dir missing adopted transcript: %v", err)
	}
}

func TestRunSecondInvocationIsIdempotent(t *testing.T) {
	installEngines(t, 120)
	cfg := newTestConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	source := filepath.Join(cfg.Paths.QueueDir, "talk.mp3")
	testsupport.WriteText(t, source, "fake media")

	manager := NewManager(cfg, store, logging.NewNop())
	if _, err := manager.Run(context.Background()); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	summary, err := manager.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if summary.Enqueued != 0 || summary.Completed != 0 || summary.Failed != 0 {
		t.Fatalf("second run did work: %+v", summary)
	}
}

func TestRunRefusesConcurrentLock(t *testing.T) {
	installEngines(t, 120)
	cfg := newTestConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	held := flock.New(cfg.LockPath())
	locked, err := held.TryLock()
	if err != nil || !locked {
		t.Fatalf("pre-acquire lock: locked=%v err=%v", locked, err)
	}
	defer held.Unlock()

	manager := NewManager(cfg, store, logging.NewNop())
	if _, err := manager.Run(context.Background()); err == nil {
		t.Fatal("Run succeeded while another process held the lock")
	}
}

func TestJobIdentityEmbedsCreationTime(t *testing.T) {
	created := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	got := JobIdentity("/queue/Ép isode.mp3", created)
	if !strings.HasSuffix(got, "-20260314-092653") {
		t.Errorf("identity missing creation timestamp: %q", got)
	}
	if strings.ContainsAny(got, " /\\:") {
		t.Errorf("identity not filesystem safe: %q", got)
	}
	if got != JobIdentity("/queue/Ép isode.mp3", created) {
		t.Error("identity not stable for the same source and time")
	}
	if got == JobIdentity("/queue/Ép isode.mp3", created.Add(time.Second)) {
		t.Error("a later enqueue reused the old identity")
	}
}

func TestRunClaimsRequeuedSourceAfterCompletion(t *testing.T) {
	installEngines(t, 120)
	cfg := newTestConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	source := filepath.Join(cfg.Paths.QueueDir, "talk.mp3")
	testsupport.WriteText(t, source, "fake media")
	manager := NewManager(cfg, store, logging.NewNop())
	if _, err := manager.Run(context.Background()); err != nil {
		t.Fatalf("first Run: %v", err)
	}

	// The same name lands in the queue again after the first job completed.
	testsupport.WriteText(t, source, "newer media")
	summary, err := manager.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if summary.Enqueued != 1 || summary.Completed != 1 {
		t.Fatalf("summary = %+v, want re-queued file processed", summary)
	}
	if _, err := os.Stat(source); !os.IsNotExist(err) {
		t.Errorf("re-queued file never claimed: %v", err)
	}

	jobs, err := store.List(context.Background(), queue.StatusCompleted)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("completed jobs = %+v", jobs)
	}
	if jobs[0].Identity == jobs[1].Identity {
		t.Errorf("re-queued source reused identity %q", jobs[0].Identity)
	}
}

func TestRunRetryAfterFailureKeepsWorkspaceMedia(t *testing.T) {
	installEngines(t, 120)
	cfg := newTestConfig(t)
	cfg.Retry.MaxRetries = 0
	store := testsupport.MustOpenStore(t, cfg)

	// Probing fails, so ingest fails the job after the media moved in.
	binDir := filepath.Join(t.TempDir(), "badbin")
	writeStub(t, binDir, "ffprobe", "#!/bin/sh\nexit 1\n")
	t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))

	source := filepath.Join(cfg.Paths.QueueDir, "broken.mp3")
	testsupport.WriteText(t, source, "fake media")

	ctx := context.Background()
	manager := NewManager(cfg, store, logging.NewNop())
	if summary, err := manager.Run(ctx); err != nil || summary.Failed != 1 {
		t.Fatalf("first Run: summary=%+v err=%v", summary, err)
	}

	jobs, err := store.List(ctx, queue.StatusFailed)
	if err != nil || len(jobs) != 1 {
		t.Fatalf("failed jobs = %+v, err = %v", jobs, err)
	}
	parkedMedia := filepath.Join(cfg.Paths.FailedDir, jobs[0].Identity, "input.mp3")
	if _, err := os.Stat(parkedMedia); err != nil {
		t.Fatalf("failed workspace missing media: %v", err)
	}

	// Retrying and failing again must not destroy the parked workspace.
	if _, err := store.RetryFailed(ctx); err != nil {
		t.Fatalf("RetryFailed: %v", err)
	}
	if summary, err := manager.Run(ctx); err != nil || summary.Failed != 1 {
		t.Fatalf("second Run: summary=%+v err=%v", summary, err)
	}
	if _, err := os.Stat(parkedMedia); err != nil {
		t.Fatalf("second failure destroyed the workspace: %v", err)
	}

	// With the probe fixed, a retry completes from the preserved media.
	writeStub(t, binDir, "ffprobe", `#!/bin/sh
printf '{"streams":[{"codec_type":"audio"}],"format":{"duration":"120.0"}}'
`)
	if _, err := store.RetryFailed(ctx); err != nil {
		t.Fatalf("RetryFailed: %v", err)
	}
	summary, err := manager.Run(ctx)
	if err != nil {
		t.Fatalf("third Run: %v", err)
	}
	if summary.Completed != 1 || summary.Failed != 0 {
		t.Fatalf("summary = %+v, want 1 completed", summary)
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.DoneDir, jobs[0].Identity+".txt")); err != nil {
		t.Errorf("done dir missing transcript after retry: %v", err)
	}
}
