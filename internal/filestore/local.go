// Package filestore places uploaded document bytes on the local filesystem
// and finds them again, including files recorded under older path layouts.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

const (
	partSuffix     = ".part"
	resolvedTTL    = 15 * time.Minute
	resolvedPurge  = 30 * time.Minute
	maxNameLength  = 100
	defaultName    = "file"
	scratchPattern = "bundle-*.zip"
)

// ErrInvalidKey is returned when a storage key would escape the upload root.
var ErrInvalidKey = errors.New("filestore: invalid storage key")

// Local stores blobs as flat files under an upload root and keeps temporary
// archive files in a separate scratch directory.
type Local struct {
	root     string
	scratch  string
	logger   *zap.Logger
	resolved *cache.Cache
	now      func() time.Time
	token    func() string
}

// Option configures a Local store.
type Option func(*Local)

// WithClock overrides the time source used when sweeping scratch files.
func WithClock(now func() time.Time) Option {
	return func(l *Local) {
		if now != nil {
			l.now = now
		}
	}
}

// WithTokenSource overrides the unique prefix of new storage keys. The
// source must never repeat a token.
func WithTokenSource(token func() string) Option {
	return func(l *Local) {
		if token != nil {
			l.token = token
		}
	}
}

// NewLocal creates the upload and scratch directories when missing.
func NewLocal(root, scratch string, logger *zap.Logger, opts ...Option) (*Local, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("filestore: upload root is required")
	}
	if strings.TrimSpace(scratch) == "" {
		scratch = filepath.Join(root, ".scratch")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("filestore: resolve upload root: %w", err)
	}
	absScratch, err := filepath.Abs(scratch)
	if err != nil {
		return nil, fmt.Errorf("filestore: resolve scratch dir: %w", err)
	}

	for _, dir := range []string{absRoot, absScratch} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("filestore: create %s: %w", dir, err)
		}
	}

	l := &Local{
		root:     absRoot,
		scratch:  absScratch,
		logger:   logger.With(zap.String("component", "filestore")),
		resolved: cache.New(resolvedTTL, resolvedPurge),
		now:      time.Now,
		token:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Root returns the absolute upload root.
func (l *Local) Root() string { return l.root }

// ScratchDir returns the absolute scratch directory.
func (l *Local) ScratchDir() string { return l.scratch }

// NewKey returns a fresh storage key: a random UUID joined to the sanitized
// base name, so two uploads of the same name never share a key.
func (l *Local) NewKey(originalName string) string {
	return l.token() + "-" + SanitizeFileName(originalName)
}

// SanitizeFileName keeps the base name and replaces every byte outside
// [A-Za-z0-9._-] with an underscore. Long names are cut to 100 bytes,
// keeping a short extension.
func SanitizeFileName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	if name == "." || name == "/" || name == ".." {
		return defaultName
	}

	result := make([]byte, 0, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		if isAllowedFilenameChar(c) {
			result = append(result, c)
		} else {
			result = append(result, '_')
		}
	}

	if len(strings.Trim(string(result), "._")) == 0 {
		return defaultName
	}
	if len(result) > maxNameLength {
		ext := filepath.Ext(string(result))
		if len(ext) > 0 && len(ext) < 10 {
			result = append(result[:maxNameLength-len(ext)], ext...)
		} else {
			result = result[:maxNameLength]
		}
	}
	return string(result)
}

func isAllowedFilenameChar(c byte) bool {
	return (c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9') ||
		c == '-' || c == '_' || c == '.'
}

// Put writes r to a .part file, syncs it, and renames it to key. A key that
// already exists is never overwritten.
func (l *Local) Put(ctx context.Context, key string, r io.Reader) (written int64, err error) {
	if !validKey(key) {
		return 0, ErrInvalidKey
	}
	target := filepath.Join(l.root, key)
	if _, statErr := os.Lstat(target); statErr == nil {
		return 0, fmt.Errorf("filestore: %w", fs.ErrExist)
	}

	part, err := os.CreateTemp(l.root, "."+key+".*"+partSuffix)
	if err != nil {
		return 0, fmt.Errorf("filestore: create part file: %w", err)
	}
	defer func() {
		if err != nil {
			part.Close()
			os.Remove(part.Name())
		}
	}()

	written, err = io.Copy(part, contextReader{ctx: ctx, r: r})
	if err != nil {
		return 0, fmt.Errorf("filestore: write: %w", err)
	}
	if err = part.Sync(); err != nil {
		return 0, fmt.Errorf("filestore: sync: %w", err)
	}
	if err = part.Close(); err != nil {
		return 0, fmt.Errorf("filestore: close: %w", err)
	}
	if err = os.Rename(part.Name(), target); err != nil {
		return 0, fmt.Errorf("filestore: rename: %w", err)
	}
	return written, nil
}

// Open resolves storedPath and opens the file for reading. Unresolvable
// paths fail with an error matching fs.ErrNotExist.
func (l *Local) Open(storedPath string) (io.ReadCloser, error) {
	resolved, err := l.Resolve(storedPath)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(resolved)
	if err != nil {
		return nil, fmt.Errorf("filestore: open: %w", err)
	}
	return f, nil
}

// Resolve maps a recorded path to an existing file. Candidates, in order:
// the key under the upload root, the recorded path as written, the upload
// root joined with the recorded base name, and finally a case-insensitive
// match of the base name among files in the upload root. Hits on any
// candidate but the first are logged and remembered.
func (l *Local) Resolve(storedPath string) (string, error) {
	storedPath = strings.TrimSpace(storedPath)
	if storedPath == "" {
		return "", fmt.Errorf("filestore: empty path: %w", fs.ErrNotExist)
	}

	if validKey(storedPath) {
		canonical := filepath.Join(l.root, storedPath)
		if isRegularFile(canonical) {
			return canonical, nil
		}
	}

	if cached, ok := l.resolved.Get(storedPath); ok {
		if path := cached.(string); isRegularFile(path) {
			return path, nil
		}
		l.resolved.Delete(storedPath)
	}

	path, strategy, ok := l.resolveLegacy(storedPath)
	if !ok {
		return "", fmt.Errorf("filestore: %q: %w", filepath.Base(storedPath), fs.ErrNotExist)
	}

	l.logger.Warn("document resolved through legacy path",
		zap.String("stored_path", storedPath),
		zap.String("strategy", strategy),
	)
	l.resolved.SetDefault(storedPath, path)
	return path, nil
}

func (l *Local) resolveLegacy(storedPath string) (path, strategy string, ok bool) {
	native := filepath.FromSlash(strings.ReplaceAll(storedPath, `\`, "/"))

	if isRegularFile(native) {
		return native, "verbatim", true
	}

	base := filepath.Base(native)
	if base == "." || base == string(filepath.Separator) {
		return "", "", false
	}

	candidate := filepath.Join(l.root, base)
	if isRegularFile(candidate) {
		return candidate, "base_name", true
	}

	entries, err := os.ReadDir(l.root)
	if err != nil {
		l.logger.Warn("upload root scan failed", zap.Error(err))
		return "", "", false
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(entry.Name(), base) {
			continue
		}
		candidate := filepath.Join(l.root, entry.Name())
		if isRegularFile(candidate) {
			return candidate, "case_insensitive", true
		}
	}
	return "", "", false
}

// Remove deletes the file recorded as storedPath. Unlike Resolve it never
// guesses: the only candidates are the key under the upload root and the
// recorded path itself when it lies inside the upload root. A file that is
// missing or lives elsewhere is treated as already gone.
func (l *Local) Remove(storedPath string) error {
	storedPath = strings.TrimSpace(storedPath)
	l.resolved.Delete(storedPath)

	target, ok := l.ownedFile(storedPath)
	if !ok {
		return nil
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("filestore: remove: %w", err)
	}
	return nil
}

// ownedFile returns the file under the upload root that storedPath names
// exactly, if one exists.
func (l *Local) ownedFile(storedPath string) (string, bool) {
	if storedPath == "" {
		return "", false
	}
	if validKey(storedPath) {
		canonical := filepath.Join(l.root, storedPath)
		if isRegularFile(canonical) {
			return canonical, true
		}
	}

	native := filepath.FromSlash(strings.ReplaceAll(storedPath, `\`, "/"))
	abs, err := filepath.Abs(native)
	if err != nil {
		return "", false
	}
	rel, err := filepath.Rel(l.root, abs)
	if err != nil || !filepath.IsLocal(rel) || !isRegularFile(abs) {
		return "", false
	}
	return abs, true
}

// CreateScratch creates an empty temporary file in the scratch directory.
// The caller owns it and must remove it.
func (l *Local) CreateScratch() (*os.File, error) {
	f, err := os.CreateTemp(l.scratch, scratchPattern)
	if err != nil {
		return nil, fmt.Errorf("filestore: create scratch file: %w", err)
	}
	return f, nil
}

// SweepScratch removes scratch files and abandoned .part files whose
// modification time is older than maxAge. It returns how many were removed.
func (l *Local) SweepScratch(maxAge time.Duration) (int, error) {
	cutoff := l.now().Add(-maxAge)
	removed := 0

	sweep := func(dir string, match func(name string) bool) error {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			if entry.IsDir() || !match(entry.Name()) {
				continue
			}
			info, err := entry.Info()
			if err != nil || info.ModTime().After(cutoff) {
				continue
			}
			if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
				l.logger.Warn("scratch removal failed", zap.String("file", entry.Name()), zap.Error(err))
				continue
			}
			removed++
		}
		return nil
	}

	if err := sweep(l.scratch, func(string) bool { return true }); err != nil {
		return removed, fmt.Errorf("filestore: sweep scratch: %w", err)
	}
	isPart := func(name string) bool { return strings.HasPrefix(name, ".") && strings.HasSuffix(name, partSuffix) }
	if err := sweep(l.root, isPart); err != nil {
		return removed, fmt.Errorf("filestore: sweep part files: %w", err)
	}

	if removed > 0 {
		l.logger.Info("scratch swept", zap.Int("removed", removed), zap.Duration("max_age", maxAge))
	}
	return removed, nil
}

// validKey accepts a single local path element.
func validKey(key string) bool {
	return key != "" &&
		!strings.HasPrefix(key, ".") &&
		filepath.IsLocal(key) &&
		!strings.ContainsAny(key, `/\`)
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// NewContextReader wraps r so that reads fail with ctx's error once ctx is
// done.
func NewContextReader(ctx context.Context, r io.Reader) io.Reader {
	return contextReader{ctx: ctx, r: r}
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
