package pool

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"testing"
)

func TestModuloCutLocator(t *testing.T) {
	tests := []struct {
		id    int64
		level int
		want  string
	}{
		{123456789, 9, "images/123/456/0789.tar"},
		{123456789, 4, "images/6/0789.tar"},
		{123456789, 3, "images/0789.tar"},
		{42, 3, "images/0042.tar"},
		{0, 3, "images/0000.tar"},
		{7, 6, "images/000/0007.tar"},
		{2345678, 4, "images/5/0678.tar"},
	}

	for _, tt := range tests {
		loc := ModuloCutLocator{BaseDir: "images", Levels: []int{tt.level}}
		got := loc.Locate(IntID(tt.id))
		if len(got) != 1 {
			t.Fatalf("Locate(%d) returned %d candidates, want 1", tt.id, len(got))
		}
		if got[0] != tt.want {
			t.Errorf("Locate(%d) level %d = %q, want %q", tt.id, tt.level, got[0], tt.want)
		}
	}
}

func TestModuloCutLocatorMultiLevel(t *testing.T) {
	loc := ModuloCutLocator{BaseDir: "images", Levels: []int{4, 3}}
	got := loc.Locate(IntID(123456789))

	want := []string{"images/6/0789.tar", "images/0789.tar"}
	if len(got) != len(want) {
		t.Fatalf("got %d candidates, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("candidate %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestModuloCutLocatorNonNumeric(t *testing.T) {
	loc := ModuloCutLocator{BaseDir: "images", Levels: []int{3}}
	if got := loc.Locate("abc"); got != nil {
		t.Errorf("Locate on non-numeric ID = %v, want nil", got)
	}
	if got := loc.Locate("-5"); got != nil {
		t.Errorf("Locate on negative ID = %v, want nil", got)
	}
}

// Decoding a shard path must recover the ID modulo 10^level: strip ".tar",
// split on "/", drop the injected "0" on the final segment, concatenate.
func TestModuloCutRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 200; i++ {
		id := rng.Int64N(10_000_000_000)
		level := 1 + rng.IntN(10)

		loc := ModuloCutLocator{BaseDir: "images", Levels: []int{level}}
		shard := loc.Locate(IntID(id))[0]

		body := strings.TrimSuffix(strings.TrimPrefix(shard, "images/"), ".tar")
		segments := strings.Split(body, "/")
		last := segments[len(segments)-1]
		if !strings.HasPrefix(last, "0") {
			t.Fatalf("id %d level %d: final segment %q lacks 0 prefix", id, level, last)
		}
		segments[len(segments)-1] = last[1:]

		decoded, err := strconv.ParseInt(strings.Join(segments, ""), 10, 64)
		if err != nil {
			t.Fatalf("id %d level %d: decode %q: %v", id, level, shard, err)
		}
		if want := id % pow10(level); decoded != want {
			t.Errorf("id %d level %d: decoded %d from %q, want %d", id, level, decoded, shard, want)
		}
	}
}

func TestCutGroups(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"789", "789"},
		{"6789", "6/789"},
		{"56789", "56/789"},
		{"456789", "456/789"},
		{"123456789", "123/456/789"},
	}
	for _, tt := range tests {
		got := strings.Join(cutGroups(tt.in), "/")
		if got != tt.want {
			t.Errorf("cutGroups(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

type staticStore struct {
	shards map[string][]Entry
}

func (s *staticStore) List(ctx context.Context, shard string) ([]Entry, error) {
	entries, ok := s.shards[shard]
	if !ok {
		return nil, fmt.Errorf("shard %q: %w", shard, ErrShardNotFound)
	}
	return entries, nil
}

func (s *staticStore) Download(ctx context.Context, shard string, entry Entry, dst string) error {
	return nil
}

func (s *staticStore) ListPrefix(ctx context.Context, prefix string) ([]string, error) {
	var out []string
	for shard := range s.shards {
		if strings.HasPrefix(shard, prefix) {
			out = append(out, shard)
		}
	}
	return out, nil
}

func TestUpdateArchiveCandidates(t *testing.T) {
	store := &staticStore{shards: map[string][]Entry{
		"updates/batch-10-7.tar": nil,
		"updates/batch-2-7.tar":  nil,
		"updates/batch-2-3.tar":  nil,
	}}

	fn := UpdateArchiveCandidates(store, "updates/", func(id ResourceID, shard string) bool {
		return strings.HasSuffix(shard, "-7.tar")
	})

	got, err := fn(context.Background(), IntID(1237))
	if err != nil {
		t.Fatalf("candidates: %v", err)
	}
	// Natural order: batch-2 before batch-10.
	want := []string{"updates/batch-2-7.tar", "updates/batch-10-7.tar"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("candidate %d = %q, want %q", i, got[i], want[i])
		}
	}
}
