package scraper

import (
	"context"
	"fmt"

	"bitbucket.org/mmdatafocus/audit_backend/config"
	"bitbucket.org/mmdatafocus/audit_backend/utils"
)

// Snapshotter archives the raw body of a fetched page.
type Snapshotter interface {
	Save(ctx context.Context, batchId, partition, sourceUrl string, body []byte) error
}

// GCSSnapshotter writes snapshots/<batchId>/<partition>.html into a bucket.
type GCSSnapshotter struct {
	Bucket string
}

// DefaultSnapshotter returns nil when SNAPSHOT_BUCKET is unset.
func DefaultSnapshotter() Snapshotter {
	bucket := config.SnapshotBucket()
	if bucket == "" {
		return nil
	}
	return &GCSSnapshotter{Bucket: bucket}
}

func SnapshotObjectName(batchId, partition string) string {
	return fmt.Sprintf("snapshots/%s/%s.html", batchId, partition)
}

func (g *GCSSnapshotter) Save(ctx context.Context, batchId, partition, sourceUrl string, body []byte) error {
	return utils.UploadBytesToGCS(ctx, g.Bucket, SnapshotObjectName(batchId, partition), body,
		"text/html; charset=utf-8", map[string]string{"source_url": sourceUrl, "batch_id": batchId})
}
