package catalog

import (
	"errors"
	"fmt"
	"testing"
)

func TestSnapshotClassify(t *testing.T) {
	snap := Snapshot{
		"2020/a.jpg": "aaaa",
		"b.png":      "bbbb",
		"nohash.gif": "",
	}

	tests := []struct {
		name string
		path string
		hash string
		want Classification
	}{
		{"unknown path is new", "c.jpg", "cccc", New},
		{"same hash is unchanged", "2020/a.jpg", "aaaa", Unchanged},
		{"different hash is changed", "b.png", "ffff", Changed},
		{"stored without hash is changed", "nohash.gif", "dddd", Changed},
		{"path match is exact", "2020/A.jpg", "aaaa", New},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := snap.Classify(tt.path, tt.hash); got != tt.want {
				t.Errorf("Classify(%q, %q) = %v, want %v", tt.path, tt.hash, got, tt.want)
			}
		})
	}
}

func TestSnapshotClassifyNil(t *testing.T) {
	var snap Snapshot
	if got := snap.Classify("a.jpg", "aaaa"); got != New {
		t.Errorf("nil snapshot Classify = %v, want new", got)
	}
	if snap.Len() != 0 {
		t.Errorf("nil snapshot Len = %d, want 0", snap.Len())
	}
}

func TestClassificationString(t *testing.T) {
	tests := map[Classification]string{
		New:                "new",
		Changed:            "changed",
		Unchanged:          "unchanged",
		Classification(99): "unknown",
	}
	for c, want := range tests {
		if got := c.String(); got != want {
			t.Errorf("Classification(%d).String() = %q, want %q", c, got, want)
		}
	}
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"a.jpg", "a.jpg"},
		{"./a.jpg", "a.jpg"},
		{"2020\\01\\a.jpg", "2020/01/a.jpg"},
		{"/2020/a.jpg", "2020/a.jpg"},
		{"2020//a.jpg", "2020/a.jpg"},
		{".", ""},
	}
	for _, tt := range tests {
		if got := NormalizePath(tt.input); got != tt.want {
			t.Errorf("NormalizePath(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestIsFileScoped(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{fmt.Errorf("open a.jpg: %w", ErrIOFailure), true},
		{fmt.Errorf("decode: %w", ErrDecodeFailure), true},
		{fmt.Errorf("tag: %w", ErrMetadataParse), true},
		{fmt.Errorf("commit: %w", ErrCommitFailure), false},
		{ErrConfiguration, false},
		{errors.New("other"), false},
		{nil, false},
	}
	for _, tt := range tests {
		if got := IsFileScoped(tt.err); got != tt.want {
			t.Errorf("IsFileScoped(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
