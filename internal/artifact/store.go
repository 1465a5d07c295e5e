// Package artifact is write-once file storage for generated HTML documents.
//
// Reports land under <root>/reports/<uuid>.html and dashboards under
// <root>/visualizations/<uuid>.html. Content is immutable after Put; there
// is no update or delete. Writers need no coordination because every Put
// mints a fresh UUID.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/user/wattwise/internal/types"
)

// ErrNotFound is returned when no artifact exists for the given ID.
var ErrNotFound = errors.New("artifact not found")

var _ types.ArtifactStore = (*Store)(nil)

// Store is a file-backed artifact store rooted at a data directory.
type Store struct {
	root string
}

func NewStore(root string) (*Store, error) {
	for _, kind := range []types.ArtifactKind{types.ArtifactReport, types.ArtifactDashboard} {
		if err := os.MkdirAll(filepath.Join(root, dirFor(kind)), 0o755); err != nil {
			return nil, fmt.Errorf("create artifact dir: %w", err)
		}
	}
	return &Store{root: root}, nil
}

func dirFor(kind types.ArtifactKind) string {
	if kind == types.ArtifactDashboard {
		return "visualizations"
	}
	return "reports"
}

// Path returns the canonical URL path for an artifact.
func Path(kind types.ArtifactKind, id types.ArtifactID) string {
	return "/" + dirFor(kind) + "/" + string(id) + ".html"
}

func (s *Store) filePath(kind types.ArtifactKind, id types.ArtifactID) string {
	return filepath.Join(s.root, dirFor(kind), string(id)+".html")
}

// Put stores content under a fresh UUID and returns the new ID.
// The write is atomic: temp file in the same directory, then rename.
func (s *Store) Put(ctx context.Context, kind types.ArtifactKind, content []byte) (types.ArtifactID, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := types.NewArtifactID()
	dest := s.filePath(kind, id)

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".artifact-*")
	if err != nil {
		return "", fmt.Errorf("create temp artifact: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("close artifact: %w", err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("commit artifact: %w", err)
	}
	return id, nil
}

// Get returns an artifact's content, searching both kinds.
func (s *Store) Get(ctx context.Context, id types.ArtifactID) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, kind := range []types.ArtifactKind{types.ArtifactReport, types.ArtifactDashboard} {
		data, err := os.ReadFile(s.filePath(kind, id))
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read artifact %s: %w", id, err)
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// GetByPath resolves a canonical artifact path like /reports/<uuid>.html.
func (s *Store) GetByPath(ctx context.Context, path string) ([]byte, error) {
	kind, id, err := ParseRef(path)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.filePath(kind, id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", path, err)
	}
	return data, nil
}

// Meta returns metadata for a stored artifact.
func (s *Store) Meta(ctx context.Context, id types.ArtifactID) (*types.ArtifactMeta, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, kind := range []types.ArtifactKind{types.ArtifactReport, types.ArtifactDashboard} {
		info, err := os.Stat(s.filePath(kind, id))
		if err == nil {
			return &types.ArtifactMeta{ID: id, Kind: kind, CreatedAt: info.ModTime().UTC()}, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("stat artifact %s: %w", id, err)
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

var refPattern = regexp.MustCompile(`/(reports|visualizations)/([0-9a-fA-F-]{36})\.html`)

// ParseRef splits a canonical artifact path into kind and ID.
func ParseRef(path string) (types.ArtifactKind, types.ArtifactID, error) {
	m := refPattern.FindStringSubmatch(path)
	if m == nil || m[0] != path {
		return "", "", fmt.Errorf("not an artifact path: %q", path)
	}
	kind := types.ArtifactReport
	if m[1] == "visualizations" {
		kind = types.ArtifactDashboard
	}
	if !types.IsArtifactID(m[2]) {
		return "", "", fmt.Errorf("not an artifact path: %q", path)
	}
	return kind, types.ArtifactID(m[2]), nil
}

// ExtractRefs returns every canonical artifact path mentioned in text,
// in order of appearance, without duplicates.
func ExtractRefs(text string) []string {
	matches := refPattern.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	var refs []string
	for _, m := range matches {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		refs = append(refs, m)
	}
	return refs
}
