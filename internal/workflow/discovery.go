package workflow

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"scribe/internal/jobstate"
	"scribe/internal/logging"
	"scribe/internal/queue"
	"scribe/internal/textutil"
	"scribe/internal/workspace"
)

// JobIdentity derives the workspace name for a source: its sanitized base name
// plus the UTC enqueue timestamp. The timestamp keeps a source queued again
// after completion from inheriting the old workspace and its artifacts.
func JobIdentity(source string, created time.Time) string {
	base := filepath.Base(strings.TrimRight(source, "/"))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	token := textutil.SanitizeToken(base)
	if len(token) > 48 {
		token = token[:48]
	}
	return token + "-" + created.UTC().Format("20060102-150405")
}

// discover populates the catalog from every configured source: orphaned
// workspaces first so interrupted jobs resume, then the queue directory, then
// the URL list. Returns the number of jobs enqueued.
func (m *Manager) discover(ctx context.Context) (int, error) {
	adopted, err := m.adoptWorkspaces(ctx)
	if err != nil {
		return 0, err
	}
	local, err := m.discoverLocal(ctx)
	if err != nil {
		return adopted, err
	}
	urls, err := m.drainURLList(ctx)
	if err != nil {
		return adopted + local, err
	}
	return adopted + local + urls, nil
}

// adoptWorkspaces re-registers workspaces that exist on disk without an
// active catalog row, trusting the state record (or its artifact-probe
// reconstruction) for where the job left off.
func (m *Manager) adoptWorkspaces(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(m.cfg.Paths.WorkDir)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("scan work dir: %w", err)
	}

	adopted := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		identity := entry.Name()
		existing, err := m.store.FindActiveByIdentity(ctx, identity)
		if err != nil {
			return adopted, err
		}
		if existing != nil {
			continue
		}

		dir := filepath.Join(m.cfg.Paths.WorkDir, identity)
		record, err := jobstate.LoadOrRecover(dir, identity)
		if err != nil {
			m.logger.Warn("workspace unreadable, leaving it alone",
				logging.String("workspace", dir), logging.Error(err))
			continue
		}
		status, ok := queue.ParseStatus(record.Status)
		if !ok || status.IsTerminal() {
			continue
		}

		category := record.SourceCategory
		if category == "" {
			category = queue.SourceLocal
		}
		job, err := m.store.NewJob(ctx, identity, record.Title, category, record.SourcePath)
		if err != nil {
			return adopted, err
		}
		job.Status = queue.RollbackStatus(status)
		job.WorkspaceDir = dir
		job.DurationSeconds = record.DurationSeconds
		job.ChunkCount = record.ChunkCount
		job.Model = record.Model
		job.JobLogPath = workspace.JobLogPath(dir)
		if err := m.store.Update(ctx, job); err != nil {
			return adopted, err
		}

		m.logger.Info("adopted orphaned workspace",
			logging.String("identity", identity),
			logging.String("status", string(job.Status)))
		adopted++
	}
	return adopted, nil
}

// discoverLocal scans the queue directory in lexical order for media files.
// The files stay put until ingest moves them into their workspaces.
func (m *Manager) discoverLocal(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(m.cfg.Paths.QueueDir)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("scan queue dir: %w", err)
	}

	allowed := extensionSet(m.cfg.Sources.Extensions)
	enqueued := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
		if _, ok := allowed[ext]; !ok {
			continue
		}

		sourcePath := filepath.Join(m.cfg.Paths.QueueDir, name)
		created, err := m.enqueue(ctx, queue.SourceLocal, sourcePath, name)
		if err != nil {
			return enqueued, err
		}
		if created {
			enqueued++
		}
	}
	return enqueued, nil
}

// drainURLList consumes the URL list file: one URL per line, blank lines and
// #-comments skipped. The file is truncated after enqueueing so the same run
// repeated does not double-submit.
func (m *Manager) drainURLList(ctx context.Context) (int, error) {
	path := m.cfg.Paths.URLList
	if path == "" {
		return 0, nil
	}
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("open url list: %w", err)
	}

	enqueued := 0
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		created, err := m.enqueue(ctx, queue.SourceURL, line, line)
		if err != nil {
			file.Close()
			return enqueued, err
		}
		if created {
			enqueued++
		}
	}
	scanErr := scanner.Err()
	file.Close()
	if scanErr != nil {
		return enqueued, fmt.Errorf("read url list: %w", scanErr)
	}

	if err := os.Truncate(path, 0); err != nil {
		return enqueued, fmt.Errorf("truncate url list: %w", err)
	}
	return enqueued, nil
}

// enqueue registers one source, creating its workspace and seeding the state
// record. A source with an active job is skipped; that job resumes instead.
func (m *Manager) enqueue(ctx context.Context, category, sourcePath, title string) (bool, error) {
	existing, err := m.store.FindActiveBySource(ctx, category, sourcePath)
	if err != nil {
		return false, err
	}
	if existing != nil {
		m.logger.Debug("source already queued, skipping",
			logging.String("identity", existing.Identity),
			logging.String("source", sourcePath))
		return false, nil
	}

	// Same-second re-queues and slug collisions get a numeric suffix so a
	// fresh source never lands in another job's workspace.
	base := JobIdentity(sourcePath, time.Now())
	identity := base
	for n := 2; ; n++ {
		held, err := m.store.FindActiveByIdentity(ctx, identity)
		if err != nil {
			return false, err
		}
		_, statErr := os.Stat(workspace.Dir(m.cfg, identity))
		if held == nil && errors.Is(statErr, os.ErrNotExist) {
			break
		}
		identity = fmt.Sprintf("%s-%d", base, n)
	}

	job, err := m.store.NewJob(ctx, identity, title, category, sourcePath)
	if err != nil {
		return false, err
	}
	job.WorkspaceDir = workspace.Dir(m.cfg, identity)
	job.JobLogPath = workspace.JobLogPath(job.WorkspaceDir)
	if err := os.MkdirAll(job.WorkspaceDir, 0o755); err != nil {
		return false, fmt.Errorf("create workspace: %w", err)
	}
	if err := m.store.Update(ctx, job); err != nil {
		return false, err
	}

	record := jobstate.New(identity, title, category, sourcePath)
	record.ChunkSeconds = m.cfg.Transcription.ChunkSeconds
	record.Language = m.cfg.Transcription.Language
	if err := jobstate.Save(job.WorkspaceDir, record); err != nil {
		return false, err
	}

	m.logger.Info("source enqueued",
		logging.String("identity", identity),
		logging.String(logging.FieldSource, category),
		logging.String("source", sourcePath))
	return true, nil
}

func extensionSet(extensions []string) map[string]struct{} {
	set := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext != "" {
			set[ext] = struct{}{}
		}
	}
	return set
}
