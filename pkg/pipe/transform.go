package pipe

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ligustah/chase/pkg/pool"
)

// FilePayload is one file read out of a materialized resource.
type FilePayload struct {
	// Name is the file's base name inside the scratch directory.
	Name string
	Data []byte
}

// SidecarPayload is a data file plus its optional decoded JSON sidecar.
type SidecarPayload struct {
	File FilePayload
	// Meta is nil when the resource carries no sidecar.
	Meta map[string]any
}

// FileTransform returns the payload of a resource holding exactly one data
// file. It fails with pool.ErrResourceNotFound when the directory holds no
// data file and with pool.ErrInvalidResourceData when it holds several;
// ".json" sidecars are ignored either way.
func FileTransform(ctx context.Context, dir string, id ResourceID, meta any) (any, error) {
	data, _, err := splitFiles(dir)
	if err != nil {
		return nil, err
	}
	file, err := onlyDataFile(data, id)
	if err != nil {
		return nil, err
	}
	return readPayload(dir, file)
}

// FileWithSidecarTransform returns a resource's single data file together
// with its decoded JSON sidecar. A missing sidecar yields a nil Meta; more
// than one data file or more than one sidecar fails with
// pool.ErrInvalidResourceData.
func FileWithSidecarTransform(ctx context.Context, dir string, id ResourceID, meta any) (any, error) {
	data, sidecars, err := splitFiles(dir)
	if err != nil {
		return nil, err
	}
	file, err := onlyDataFile(data, id)
	if err != nil {
		return nil, err
	}
	if len(sidecars) > 1 {
		return nil, fmt.Errorf("sidecar not unique for resource %q (%d found): %w",
			id, len(sidecars), pool.ErrInvalidResourceData)
	}

	payload, err := readPayload(dir, file)
	if err != nil {
		return nil, err
	}
	out := SidecarPayload{File: payload.(FilePayload)}
	if len(sidecars) == 1 {
		raw, err := os.ReadFile(filepath.Join(dir, sidecars[0]))
		if err != nil {
			return nil, fmt.Errorf("read sidecar for %q: %w", id, err)
		}
		if err := json.Unmarshal(raw, &out.Meta); err != nil {
			return nil, fmt.Errorf("decode sidecar for %q: %w", id, pool.ErrInvalidResourceData)
		}
	}
	return out, nil
}

// FilesTransform returns every file of a materialized resource sorted by
// name, the natural pairing for composite sources whose children were
// gathered into one directory.
func FilesTransform(ctx context.Context, dir string, id ResourceID, meta any) (any, error) {
	names, err := listFiles(dir)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no files for resource %q: %w", id, pool.ErrResourceNotFound)
	}
	payloads := make([]FilePayload, 0, len(names))
	for _, name := range names {
		p, err := readPayload(dir, name)
		if err != nil {
			return nil, err
		}
		payloads = append(payloads, p.(FilePayload))
	}
	return payloads, nil
}

func listFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// splitFiles partitions a scratch directory into data files and ".json"
// sidecars.
func splitFiles(dir string) (data, sidecars []string, err error) {
	names, err := listFiles(dir)
	if err != nil {
		return nil, nil, err
	}
	for _, name := range names {
		if strings.EqualFold(filepath.Ext(name), ".json") {
			sidecars = append(sidecars, name)
		} else {
			data = append(data, name)
		}
	}
	return data, sidecars, nil
}

func onlyDataFile(data []string, id ResourceID) (string, error) {
	switch len(data) {
	case 0:
		return "", fmt.Errorf("data file not found for resource %q: %w", id, pool.ErrResourceNotFound)
	case 1:
		return data[0], nil
	default:
		return "", fmt.Errorf("data file not unique for resource %q (%d found): %w",
			id, len(data), pool.ErrInvalidResourceData)
	}
}

func readPayload(dir, name string) (any, error) {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return nil, err
	}
	return FilePayload{Name: name, Data: data}, nil
}
