// Package fileutil moves finished artifacts into place without ever exposing
// a partially written destination.
package fileutil

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const lockRetryDelay = 100 * time.Millisecond

// CopyFile copies src to dst, creating dst's directory and syncing the data.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", dst, err)
	}

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return fmt.Errorf("failed to sync %s: %w", dst, err)
	}
	return out.Close()
}

// Publish copies src to dest.partial under an exclusive lock on dest.lock,
// then renames it over dest. Readers see either the old file or the complete
// new one.
func Publish(ctx context.Context, src, dest string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("failed to stat publish source: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("refusing to publish empty file %s", src)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	lock := flock.New(dest + ".lock")
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("failed to lock %s: %w", dest, err)
	}
	if !locked {
		return fmt.Errorf("failed to lock %s", dest)
	}
	defer func() {
		_ = lock.Unlock()
		_ = os.Remove(dest + ".lock")
	}()

	partial := dest + ".partial"
	if err := CopyFile(src, partial); err != nil {
		_ = os.Remove(partial)
		return err
	}
	if err := os.Rename(partial, dest); err != nil {
		_ = os.Remove(partial)
		return fmt.Errorf("failed to move %s into place: %w", dest, err)
	}
	return nil
}

// NonEmpty reports whether path exists and holds data.
func NonEmpty(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir() && info.Size() > 0
}

// Exists reports whether path exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
