// Package fileutil implements the file plumbing the pipeline moves media
// through: plain copies for queueing, verified copies for cross-filesystem
// moves, hard-link aliases for derived artifacts.
package fileutil

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// CopyFile duplicates src at dst with default permissions. Queue and workspace
// directories are scribe-owned, so 0o644 always fits.
func CopyFile(src, dst string) error {
	return CopyFileMode(src, dst, 0o644)
}

// CopyFileMode duplicates src at dst with an explicit mode, truncating any
// existing destination.
func CopyFileMode(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// CopyFileVerified duplicates src at dst, then re-reads both sides and
// compares sizes and SHA-256 digests. Media crossing a filesystem boundary on
// its way to the done or failed directory must not survive truncated; a
// failed verification removes dst.
func CopyFileVerified(src, dst string) error {
	if err := CopyFile(src, dst); err != nil {
		return err
	}

	srcSum, srcSize, err := digest(src)
	if err != nil {
		return err
	}
	dstSum, dstSize, err := digest(dst)
	if err != nil {
		return err
	}
	if srcSize != dstSize {
		os.Remove(dst)
		return fmt.Errorf("verify copy of %s: wrote %d of %d bytes", src, dstSize, srcSize)
	}
	if srcSum != dstSum {
		os.Remove(dst)
		return fmt.Errorf("verify copy of %s: checksum mismatch", src)
	}
	return nil
}

func digest(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	hasher := sha256.New()
	size, err := io.Copy(hasher, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(hasher.Sum(nil)), size, nil
}
