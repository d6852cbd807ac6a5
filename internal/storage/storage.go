// Package storage uploads document attachments to a blob store and hands back
// the URLs recorded on documents.
package storage

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/ninersracing/kbwiki/pkg/logger"
	"github.com/ninersracing/kbwiki/pkg/metrics"
	"github.com/sirupsen/logrus"
)

// BlobStore persists bytes under a path and returns a URL to fetch them.
type BlobStore interface {
	Put(ctx context.Context, path string, data []byte, metadata map[string]string) (string, error)
}

// File is one uploaded attachment.
type File struct {
	Name string
	Data []byte
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9.-]`)

// Key builds the object path for an attachment.
func Key(name string, at time.Time) string {
	return fmt.Sprintf("attachments/%d_%s", at.UnixMilli(), unsafeChars.ReplaceAllString(name, "_"))
}

// Uploader writes attachments to a BlobStore.
type Uploader struct {
	store BlobStore
	now   func() time.Time
}

func NewUploader(store BlobStore) *Uploader {
	return &Uploader{store: store, now: time.Now}
}

// UploadAll stores every file and returns the URLs of those that succeeded,
// in input order. A failed file is logged and skipped.
func (u *Uploader) UploadAll(ctx context.Context, files []File, uploadedBy string) []string {
	urls := make([]string, 0, len(files))
	for _, f := range files {
		key := Key(f.Name, u.now())
		url, err := u.store.Put(ctx, key, f.Data, map[string]string{
			"originalName": f.Name,
			"uploadedBy":   uploadedBy,
		})
		if err != nil {
			metrics.AttachmentFailures.Inc()
			logger.WithFields(logrus.Fields{"file": f.Name, "key": key}).WithError(err).Warn("attachment upload failed")
			continue
		}
		urls = append(urls, url)
	}
	return urls
}

// MemoryStore is a BlobStore kept in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]Object
}

// Object is a blob held by MemoryStore.
type Object struct {
	Data     []byte
	Metadata map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]Object)}
}

func (m *MemoryStore) Put(_ context.Context, path string, data []byte, metadata map[string]string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	meta := make(map[string]string, len(metadata))
	for k, v := range metadata {
		meta[k] = v
	}
	m.objects[path] = Object{Data: append([]byte(nil), data...), Metadata: meta}
	return "memory://" + path, nil
}

// Get returns the stored object.
func (m *MemoryStore) Get(path string) (Object, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.objects[path]
	return o, ok
}
