// Package artifact manages the chart files produced by the executor: local
// removal on undo, an optional MinIO mirror and a periodic sweep of stale
// output.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

var ErrOutsideRoot = errors.New("artifact: path is outside the output directory")

// Info describes one artifact on disk.
type Info struct {
	Name    string    `json:"name"`
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// Local is the shared output directory the executor writes into.
type Local struct {
	root string
}

func NewLocal(root string) (*Local, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve output dir: %w", err)
	}
	return &Local{root: abs}, nil
}

func (l *Local) Root() string { return l.root }

func (l *Local) contains(path string) (string, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", false
	}
	rel, err := filepath.Rel(l.root, abs)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return abs, true
}

// Remove deletes an artifact. A file that is already gone is not an error.
func (l *Local) Remove(ctx context.Context, path string) error {
	abs, ok := l.contains(path)
	if !ok {
		return fmt.Errorf("%w: %s", ErrOutsideRoot, path)
	}
	if err := os.Remove(abs); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	log.Printf("🗑️ [ARTIFACT] Removed %s", abs)
	return nil
}

// List returns the regular files in the output directory, newest first.
func (l *Local) List() ([]Info, error) {
	entries, err := os.ReadDir(l.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	out := make([]Info, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, Info{
			Name:    e.Name(),
			Path:    filepath.Join(l.root, e.Name()),
			Size:    fi.Size(),
			ModTime: fi.ModTime(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ModTime.After(out[j].ModTime) })
	return out, nil
}

// Remover is satisfied by Local and Bucket.
type Remover interface {
	Remove(ctx context.Context, path string) error
}

type chain []Remover

// Chain removes an artifact from every store and joins their errors.
func Chain(removers ...Remover) Remover {
	var c chain
	for _, r := range removers {
		if r != nil {
			c = append(c, r)
		}
	}
	return c
}

func (c chain) Remove(ctx context.Context, path string) error {
	var errs []error
	for _, r := range c {
		if err := r.Remove(ctx, path); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
