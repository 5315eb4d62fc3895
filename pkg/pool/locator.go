package pool

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/maruel/natural"
)

// ResourceID identifies one logical item in a data pool. IDs are opaque
// strings; pools with numeric ID spaces parse them for sharding arithmetic.
type ResourceID string

// IntID returns the ResourceID for a numeric identifier.
func IntID(n int64) ResourceID {
	return ResourceID(strconv.FormatInt(n, 10))
}

// Int parses the ID as a non-negative integer. ok is false for IDs that are
// not purely numeric.
func (id ResourceID) Int() (int64, bool) {
	n, err := strconv.ParseInt(string(id), 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// A Locator maps a resource ID to candidate shard paths, highest priority
// first. Implementations are pure: no I/O, deterministic, never failing.
// An ID the locator cannot place yields no candidates.
type Locator interface {
	Locate(id ResourceID) []string
}

// LocatorFunc adapts a function to the Locator interface.
type LocatorFunc func(id ResourceID) []string

func (f LocatorFunc) Locate(id ResourceID) []string { return f(id) }

// ModuloCutLocator implements the "modulo cut" sharding layout used by
// incremental-ID datasets. For a level L, the ID modulo 10^L is zero-padded
// to width L, cut into groups of three decimal digits, and joined with "/".
// The final group carries a literal "0" prefix; remote archive names depend
// on that historical convention, so it is preserved exactly.
//
// Example: ID 123456789 at level 9 under "images" maps to
// "images/123/456/0789.tar"; at level 3 it maps to "images/0789.tar".
//
// Multiple levels produce one candidate per level in slice order, supporting
// datasets that migrated between sharding depths over time.
type ModuloCutLocator struct {
	BaseDir string
	Levels  []int
}

func (l ModuloCutLocator) Locate(id ResourceID) []string {
	n, ok := id.Int()
	if !ok {
		return nil
	}
	paths := make([]string, 0, len(l.Levels))
	for _, level := range l.Levels {
		paths = append(paths, moduloCutPath(l.BaseDir, n, level))
	}
	return paths
}

func moduloCutPath(baseDir string, n int64, level int) string {
	mod := n % pow10(level)
	groups := cutGroups(fmt.Sprintf("%0*d", level, mod))
	groups[len(groups)-1] = "0" + groups[len(groups)-1]
	return baseDir + "/" + strings.Join(groups, "/") + ".tar"
}

// cutGroups splits a digit string into groups of three starting from the
// least significant end, returned most significant first. The leading group
// may be shorter than three digits.
func cutGroups(s string) []string {
	var groups []string
	if head := len(s) % 3; head > 0 {
		groups = append(groups, s[:head])
		s = s[head:]
	}
	for i := 0; i < len(s); i += 3 {
		groups = append(groups, s[i:i+3])
	}
	return groups
}

func pow10(n int) int64 {
	p := int64(1)
	for i := 0; i < n; i++ {
		p *= 10
	}
	return p
}

// A CandidateFunc produces additional candidate shards for an ID, appended
// after the locator's deterministic candidates. Unlike a Locator it may
// perform I/O, e.g. enumerating a remote directory of update archives.
type CandidateFunc func(ctx context.Context, id ResourceID) ([]string, error)

// UpdateArchiveCandidates returns a CandidateFunc that enumerates ".tar"
// shards under prefix, natural-sorts them, and offers those accepted by
// match for the requested ID. The remote listing happens once on first use
// and is reused for the lifetime of the returned function.
func UpdateArchiveCandidates(store ArchiveStore, prefix string, match func(id ResourceID, shard string) bool) CandidateFunc {
	var (
		mu     sync.Mutex
		shards []string
		listed bool
	)
	return func(ctx context.Context, id ResourceID) ([]string, error) {
		mu.Lock()
		defer mu.Unlock()
		if !listed {
			found, err := store.ListPrefix(ctx, prefix)
			if err != nil {
				return nil, fmt.Errorf("list update archives %q: %w", prefix, err)
			}
			sort.Slice(found, func(i, j int) bool {
				return natural.Less(found[i], found[j])
			})
			shards = found
			listed = true
		}
		var out []string
		for _, shard := range shards {
			if match == nil || match(id, shard) {
				out = append(out, shard)
			}
		}
		return out, nil
	}
}
