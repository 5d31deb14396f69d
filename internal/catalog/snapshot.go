package catalog

// Classification is the outcome of comparing a discovered file against the
// snapshot.
type Classification int

const (
	// New means the path is not in the catalog.
	New Classification = iota
	// Changed means the path is known but its content hash differs.
	Changed
	// Unchanged means the path is known with the same content hash.
	Unchanged
)

func (c Classification) String() string {
	switch c {
	case New:
		return "new"
	case Changed:
		return "changed"
	case Unchanged:
		return "unchanged"
	default:
		return "unknown"
	}
}

// Snapshot maps relative path to the last known content hash. An empty hash
// means the entry was stored without one.
type Snapshot map[string]string

// Classify compares a freshly computed hash against the snapshot.
func (s Snapshot) Classify(relPath, hash string) Classification {
	known, ok := s[relPath]
	if !ok {
		return New
	}
	if known != "" && known == hash {
		return Unchanged
	}
	return Changed
}

// Len returns the number of known paths.
func (s Snapshot) Len() int {
	return len(s)
}
