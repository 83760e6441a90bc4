package model

import "time"

// ArchiveRecord describes a project's durable bundle in the blob store. After
// local eviction it is the sole representation of the project tree.
type ArchiveRecord struct {
	ProjectID string
	Key       string
	SizeBytes int64
	CreatedAt time.Time
}
