// Package scanner walks a working tree and counts the files and lines that
// count toward a change budget.
//
// Every scan is a fresh walk; nothing is cached between scans. Unreadable
// files are skipped and reported, never fatal, so a scan always produces a
// consistent (possibly partial) count.
package scanner

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ScanError records a file or directory that could not be read.
type ScanError struct {
	Path string
	Err  error
}

func (e ScanError) Error() string {
	return e.Path + ": " + e.Err.Error()
}

// Result is the outcome of one scan.
type Result struct {
	Files   uint
	Lines   uint
	Skipped []ScanError
}

// Counter is the counting contract the monitor depends on.
type Counter interface {
	Scan(ctx context.Context, roots []string) (Result, error)
}

// Scanner counts files and lines under a set of roots.
type Scanner struct {
	// Extensions is the allowlist of counted file extensions.
	Extensions []string

	// IgnoreDirs are directory base names that are never descended into.
	IgnoreDirs []string

	Logger *slog.Logger
}

// New creates a scanner with the default ignore set. A nil or empty
// extension list selects DefaultExtensions.
func New(extensions []string, logger *slog.Logger) *Scanner {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{
		Extensions: extensions,
		IgnoreDirs: DefaultIgnoreDirs,
		Logger:     logger.With("component", "scanner"),
	}
}

// Scan implements Counter. Roots are walked concurrently; missing roots
// contribute zero. The only error returned is context cancellation.
func (s *Scanner) Scan(ctx context.Context, roots []string) (Result, error) {
	var (
		mu     sync.Mutex
		result Result
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, root := range normalizeRoots(roots) {
		g.Go(func() error {
			var files, lines uint
			var skipped []ScanError

			err := s.walk(gctx, root, func(path, _ string) {
				n, err := countLines(path)
				if err != nil {
					skipped = append(skipped, ScanError{Path: path, Err: err})
					return
				}
				files++
				lines += n
			}, func(se ScanError) {
				skipped = append(skipped, se)
			})
			if err != nil {
				return err
			}

			mu.Lock()
			result.Files += files
			result.Lines += lines
			result.Skipped = append(result.Skipped, skipped...)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	for _, se := range result.Skipped {
		s.Logger.Debug("skipped unreadable path", "path", se.Path, "error", se.Err)
	}
	return result, nil
}

// walk visits every allowlisted regular file under root depth-first.
// visit receives the absolute and root-relative path.
func (s *Scanner) walk(ctx context.Context, root string, visit func(path, rel string), skip func(ScanError)) error {
	allowed := extensionSet(s.Extensions)
	ignored := make(map[string]bool, len(s.IgnoreDirs))
	for _, d := range s.IgnoreDirs {
		ignored[d] = true
	}

	if _, err := os.Stat(root); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.Logger.Debug("scan root does not exist", "root", root)
			return nil
		}
		skip(ScanError{Path: root, Err: err})
		return nil
	}

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			// Permission error or a race with deletion. Skip the entry
			// and keep walking.
			skip(ScanError{Path: path, Err: err})
			if d != nil && d.IsDir() && path != root {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if path != root && ignored[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() || !hasAllowedExtension(path, allowed) {
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		visit(path, rel)
		return nil
	})
}

// countLines counts newline-terminated lines, plus a final unterminated
// line if present. Streams the file so large files do not load into memory.
func countLines(path string) (uint, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	buf := make([]byte, 32*1024)
	var count uint
	unterminated := false
	for {
		n, err := f.Read(buf)
		if n > 0 {
			count += uint(bytes.Count(buf[:n], []byte{'\n'}))
			unterminated = buf[n-1] != '\n'
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, err
		}
	}
	if unterminated {
		count++
	}
	return count, nil
}
