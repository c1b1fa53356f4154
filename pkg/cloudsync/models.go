// Package cloudsync defines the data model shared by the settings, data,
// and delta-sync services: the stored row types, the manifest entry, key
// validation, and the sentinel errors of the storage surface.
package cloudsync

// UserSettings is the single settings blob stored per user. The ID is the
// derived storage key, not the external user id. Timestamps are
// millisecond epoch values.
type UserSettings struct {
	ID        string
	Settings  []byte
	CreatedAt int64
	UpdatedAt int64
}

// DataEntry is one versioned value in a user's data namespace.
//
// Value holds the bytes exactly as stored; whether they are compressed is
// decided per value by the codec and detectable only through the zstd
// frame magic. Checksum and SizeBytes always describe the uncompressed
// representation.
type DataEntry struct {
	UserID    string
	Key       string
	Value     []byte
	Version   int64
	Checksum  string
	SizeBytes int32
	CreatedAt int64
	UpdatedAt int64
}

// ManifestEntry is a DataEntry without its value, as listed by the
// manifest endpoint and diffed by the sync engine.
type ManifestEntry struct {
	Key       string `json:"key"`
	Version   int64  `json:"version"`
	Checksum  string `json:"checksum"`
	SizeBytes int32  `json:"size_bytes"`
	UpdatedAt int64  `json:"updated_at"`
}

// VersionInfo is the (version, created_at) pair the version allocator
// reads before an upsert. SizeBytes rides along for quota math.
type VersionInfo struct {
	Version   int64
	CreatedAt int64
	SizeBytes int32
}
