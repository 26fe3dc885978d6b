// Package downloader saves media files from the server into the local
// downloads store.
package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"clipdeck/internal/downloads"
	"clipdeck/pkg/models"
)

var (
	ErrDownloadFailed = errors.New("download failed")
	ErrInProgress     = errors.New("file is already downloading")
	ErrUnknownRequest = errors.New("download not found")
)

// Fetcher opens the bytes behind a server source path
type Fetcher interface {
	Download(ctx context.Context, src string) (io.ReadCloser, error)
}

// DownloadStatus represents the status of a download
type DownloadStatus int

const (
	StatusQueued DownloadStatus = iota
	StatusDownloading
	StatusCompleted
	StatusFailed
)

func (s DownloadStatus) String() string {
	switch s {
	case StatusQueued:
		return "queued"
	case StatusDownloading:
		return "downloading"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Request is one download and its outcome
type Request struct {
	Src        string
	FileName   string
	QueuedAt   time.Time
	StartedAt  time.Time
	FinishedAt time.Time
	Status     DownloadStatus
	Entry      models.DownloadEntry
	Error      error
}

// Downloader runs downloads against a Fetcher into a Store
type Downloader struct {
	mu      sync.RWMutex
	fetcher Fetcher
	store   *downloads.Store
	logger  *slog.Logger
	active  map[string]*Request
	history []Request
}

// maxHistory bounds how many finished requests are remembered
const maxHistory = 50

// NewDownloader creates a new downloader
func NewDownloader(fetcher Fetcher, store *downloads.Store, logger *slog.Logger) *Downloader {
	if logger == nil {
		logger = slog.Default()
	}

	return &Downloader{
		fetcher: fetcher,
		store:   store,
		logger:  logger,
		active:  make(map[string]*Request),
	}
}

// Download fetches src and saves it as fileName, blocking until done.
// The returned request carries the final status; Error is set on failure.
func (d *Downloader) Download(ctx context.Context, src, fileName string) *Request {
	req := &Request{
		Src:      src,
		FileName: fileName,
		QueuedAt: time.Now(),
		Status:   StatusQueued,
	}

	if err := d.begin(req); err != nil {
		req.Status = StatusFailed
		req.Error = err
		req.FinishedAt = time.Now()
		return req
	}
	defer d.finish(req)

	d.update(func() {
		req.Status = StatusDownloading
		req.StartedAt = time.Now()
	})

	entry, err := d.execute(ctx, req)

	if err != nil {
		d.update(func() {
			req.Status = StatusFailed
			req.Error = err
			req.FinishedAt = time.Now()
		})
		d.logger.Error("download failed", "file", fileName, "src", src, "error", err)
		return req
	}

	d.update(func() {
		req.Status = StatusCompleted
		req.Entry = entry
		req.FinishedAt = time.Now()
	})
	d.logger.Info("download completed", "file", fileName, "size", entry.Size,
		"elapsed", req.FinishedAt.Sub(req.StartedAt))

	return req
}

func (d *Downloader) execute(ctx context.Context, req *Request) (models.DownloadEntry, error) {
	if err := downloads.ValidateName(req.FileName); err != nil {
		return models.DownloadEntry{}, fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}

	body, err := d.fetcher.Download(ctx, req.Src)
	if err != nil {
		return models.DownloadEntry{}, fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}
	defer body.Close()

	entry, err := d.store.Save(req.FileName, body)
	if err != nil {
		return models.DownloadEntry{}, fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}

	return entry, nil
}

// begin marks the file as in flight, refusing a second concurrent download
func (d *Downloader) begin(req *Request) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.active[req.FileName]; ok {
		return ErrInProgress
	}
	d.active[req.FileName] = req
	return nil
}

// update mutates an in-flight request under the lock GetStatus reads with
func (d *Downloader) update(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn()
}

func (d *Downloader) finish(req *Request) {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.active, req.FileName)
	d.history = append(d.history, *req)
	if len(d.history) > maxHistory {
		d.history = d.history[len(d.history)-maxHistory:]
	}
}

// GetStatus returns the in-flight or most recent request for fileName
func (d *Downloader) GetStatus(fileName string) (*Request, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if req, ok := d.active[fileName]; ok {
		reqCopy := *req
		return &reqCopy, nil
	}

	for i := len(d.history) - 1; i >= 0; i-- {
		if d.history[i].FileName == fileName {
			reqCopy := d.history[i]
			return &reqCopy, nil
		}
	}

	return nil, ErrUnknownRequest
}

// GetActiveDownloads returns the number of downloads in flight
func (d *Downloader) GetActiveDownloads() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.active)
}

// Store returns the store downloads are saved into
func (d *Downloader) Store() *downloads.Store {
	return d.store
}
