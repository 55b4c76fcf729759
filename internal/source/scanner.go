package source

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"docrag/internal/contextutil"
	"docrag/internal/errs"
)

// scannedFile represents a matching file found under a source root.
type scannedFile struct {
	documentID string // Relative path from the root (e.g., "guides/setup.pdf")
	path       string // Absolute file path
	info       fs.FileInfo
}

// scan walks the source root and returns every file with a matching
// extension in lexical order. A missing or unreadable root is reported as
// errs.ErrSourceUnreadable; unreadable entries below it are logged and skipped.
func (b base) scan(ctx context.Context) ([]scannedFile, error) {
	logger := contextutil.LoggerFromContext(ctx)

	rootInfo, err := os.Stat(b.root)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errs.ErrSourceUnreadable, b.root, err)
	}
	if !rootInfo.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", errs.ErrSourceUnreadable, b.root)
	}

	var files []scannedFile
	err = filepath.WalkDir(b.root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if err != nil {
			if path == b.root {
				return fmt.Errorf("%w: %s: %v", errs.ErrSourceUnreadable, b.root, err)
			}
			logger.WarnContext(ctx, "skipping unreadable path", "source_id", b.id, "path", path, "error", err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			// Skip hidden directories (.git, .obsidian, ...)
			if path != b.root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() || !b.Matches(path) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			logger.WarnContext(ctx, "skipping file without info", "source_id", b.id, "path", path, "error", err)
			return nil
		}

		documentID, err := b.Identify(path)
		if err != nil {
			return err
		}

		files = append(files, scannedFile{
			documentID: documentID,
			path:       path,
			info:       info,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan source %s: %w", b.id, err)
	}

	return files, nil
}
