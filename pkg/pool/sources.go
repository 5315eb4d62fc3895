package pool

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// MultiPool is a Source that tries several sources in order, returning the
// first that holds the resource. Datasets split into a stable archive plus a
// rolling "newest" archive are modeled this way.
type MultiPool []Source

func (m MultiPool) WithResource(ctx context.Context, id ResourceID, meta any, fn func(dir string, meta any) error) error {
	for _, src := range m {
		err := src.WithResource(ctx, id, meta, fn)
		if errors.Is(err, ErrResourceNotFound) {
			continue
		}
		return err
	}
	return fmt.Errorf("resource %q: %w", id, ErrResourceNotFound)
}

// A ChildFunc maps a composite resource to the IDs of its child resources,
// in presentation order.
type ChildFunc func(ctx context.Context, id ResourceID, meta any) ([]ResourceID, error)

// CompositeSource materializes a resource that is itself composed of child
// resources, such as a gallery of individually stored pages. Every child is
// materialized through the underlying source and its files are gathered into
// one directory, named "<childID><ext>" to stay unique and ordered.
//
// A composite with zero children fails with ErrResourceNotFound. A child
// missing from the underlying source fails the whole composite.
type CompositeSource struct {
	Children Source
	IDs      ChildFunc
}

func (s *CompositeSource) WithResource(ctx context.Context, id ResourceID, meta any, fn func(dir string, meta any) error) error {
	children, err := s.IDs(ctx, id, meta)
	if err != nil {
		return fmt.Errorf("children of %q: %w", id, err)
	}
	if len(children) == 0 {
		return fmt.Errorf("composite %q has no children: %w", id, ErrResourceNotFound)
	}

	dir, err := os.MkdirTemp("", "chase-")
	if err != nil {
		return fmt.Errorf("scratch dir for %q: %w", id, err)
	}
	defer os.RemoveAll(dir)

	for _, child := range children {
		err := s.Children.WithResource(ctx, child, nil, func(childDir string, _ any) error {
			return gatherFiles(childDir, dir, child)
		})
		if err != nil {
			return fmt.Errorf("composite %q child %q: %w", id, child, err)
		}
	}
	return fn(dir, meta)
}

func gatherFiles(src, dst string, child ResourceID) error {
	return filepath.WalkDir(src, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		return CopyFile(p, filepath.Join(dst, string(child)+filepath.Ext(p)))
	})
}
