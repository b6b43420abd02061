package album

import (
	"fmt"
	"sync"
	"time"
)

// Photo is one image out of a Telegram media group upload.
type Photo struct {
	ChatID  int64
	UserID  int64
	AlbumID string
	Caption string
	FileID  string
}

// Batch is a complete album once the debounce window closes. Caption is
// the last non-empty caption seen, which is where clients put the style.
type Batch struct {
	ChatID  int64
	UserID  int64
	Caption string
	FileIDs []string
}

type Options struct {
	Debounce time.Duration
	OnFlush  func(Batch)
}

// Aggregator collects album photos that Telegram delivers as separate
// updates and flushes them as one batch after a quiet period.
type Aggregator struct {
	mu       sync.Mutex
	debounce time.Duration
	onFlush  func(Batch)
	pending  map[string]*pendingBatch
}

type pendingBatch struct {
	batch Batch
	timer *time.Timer
}

func New(opts Options) *Aggregator {
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = 1200 * time.Millisecond
	}

	return &Aggregator{
		debounce: debounce,
		onFlush:  opts.OnFlush,
		pending:  make(map[string]*pendingBatch),
	}
}

func (a *Aggregator) Add(photo Photo) {
	if photo.AlbumID == "" || photo.FileID == "" {
		return
	}

	key := fmt.Sprintf("%d:%s", photo.ChatID, photo.AlbumID)

	a.mu.Lock()
	defer a.mu.Unlock()

	pb, ok := a.pending[key]
	if !ok {
		pb = &pendingBatch{
			batch: Batch{
				ChatID:  photo.ChatID,
				UserID:  photo.UserID,
				Caption: photo.Caption,
				FileIDs: []string{photo.FileID},
			},
		}
		a.pending[key] = pb
	} else {
		pb.batch.FileIDs = append(pb.batch.FileIDs, photo.FileID)
		if photo.Caption != "" {
			pb.batch.Caption = photo.Caption
		}
	}

	if pb.timer != nil {
		pb.timer.Stop()
	}
	pb.timer = time.AfterFunc(a.debounce, func() {
		a.flush(key)
	})
}

func (a *Aggregator) flush(key string) {
	a.mu.Lock()
	pb, ok := a.pending[key]
	if !ok {
		a.mu.Unlock()
		return
	}
	delete(a.pending, key)
	batch := pb.batch
	onFlush := a.onFlush
	a.mu.Unlock()

	if onFlush != nil {
		onFlush(batch)
	}
}
