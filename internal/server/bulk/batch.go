// Package bulk runs queued multi-image background removal. Each batch is a
// small state machine processed strictly in submission order; observers
// subscribe to its transitions.
package bulk

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/cutout/internal/common"
)

// ArchiveName is the download name of DownloadAll's archive.
const ArchiveName = "processed_images.zip"

const resultPrefix = "bg_removed_"

type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusDone       Status = "done"
	StatusError      Status = "error"
)

func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusError
}

// Upload is one submitted file.
type Upload struct {
	Name     string
	Data     []byte
	MimeType string
}

// Item is one file of a batch.
type Item struct {
	Index        int
	OriginalName string
	Original     []byte
	MimeType     string
	Result       []byte
	Status       Status
	Error        string
}

type ItemView struct {
	Index  int    `json:"index"`
	Name   string `json:"name"`
	Status Status `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Summary is a point-in-time view of a batch.
type Summary struct {
	ID         string     `json:"batchId"`
	Total      int        `json:"total"`
	Queued     int        `json:"queued"`
	Processing int        `json:"processing"`
	Done       int        `json:"done"`
	Failed     int        `json:"failed"`
	Ready      bool       `json:"ready"`
	Items      []ItemView `json:"items"`
}

// Event is emitted on every item transition.
type Event struct {
	BatchID  string  `json:"batchId"`
	Index    int     `json:"index"`
	Status   Status  `json:"status"`
	Snapshot Summary `json:"snapshot"`
}

type Batch struct {
	ID    string
	Owner int64

	mu         sync.Mutex
	items      []*Item
	subs       map[int]chan Event
	nextSub    int
	closed     bool
	lastAccess time.Time

	cancel context.CancelFunc
}

// NewBatch creates a batch with every upload queued, in submission order.
func NewBatch(id string, owner int64, uploads []Upload) *Batch {
	items := make([]*Item, len(uploads))
	for i, u := range uploads {
		items[i] = &Item{
			Index:        i,
			OriginalName: u.Name,
			Original:     u.Data,
			MimeType:     u.MimeType,
			Status:       StatusQueued,
		}
	}
	return &Batch{
		ID:         id,
		Owner:      owner,
		items:      items,
		subs:       make(map[int]chan Event),
		lastAccess: time.Now(),
		cancel:     func() {},
	}
}

func (b *Batch) Len() int {
	return len(b.items)
}

// Subscribe returns a channel of transitions. The channel is closed when the
// batch finishes or is discarded; cancel detaches early.
func (b *Batch) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	// two transitions per item fit without blocking the processor
	ch := make(chan Event, 2*len(b.items)+1)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextSub
	b.nextSub++
	b.subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if c, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(c)
		}
	}
}

// Snapshot returns counts and per-item views.
func (b *Batch) Snapshot() Summary {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshotLocked()
}

func (b *Batch) snapshotLocked() Summary {
	s := Summary{ID: b.ID, Total: len(b.items), Items: make([]ItemView, len(b.items))}
	for i, it := range b.items {
		s.Items[i] = ItemView{Index: it.Index, Name: it.OriginalName, Status: it.Status, Error: it.Error}
		switch it.Status {
		case StatusQueued:
			s.Queued++
		case StatusProcessing:
			s.Processing++
		case StatusDone:
			s.Done++
		case StatusError:
			s.Failed++
		}
	}
	s.Ready = s.Queued == 0 && s.Processing == 0
	return s
}

// Result returns the processed PNG of a done item.
func (b *Batch) Result(index int) ([]byte, string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if index < 0 || index >= len(b.items) || b.items[index].Status != StatusDone {
		return nil, "", common.ErrorNotFound
	}
	it := b.items[index]
	return it.Result, resultPrefix + it.OriginalName, nil
}

// DownloadAll zips every done item. ErrorNotReady while work is pending.
func (b *Batch) DownloadAll() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.snapshotLocked().Ready {
		return nil, common.ErrorNotReady
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	used := make(map[string]bool)

	for _, it := range b.items {
		if it.Status != StatusDone {
			continue
		}
		w, err := zw.Create(uniqueName(used, resultPrefix+it.OriginalName))
		if err != nil {
			return nil, fmt.Errorf("zip create: %w", err)
		}
		if _, err := w.Write(it.Result); err != nil {
			return nil, fmt.Errorf("zip write: %w", err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("zip close: %w", err)
	}
	return buf.Bytes(), nil
}

// uniqueName returns name, or name with the lowest free _N suffix, and
// marks the result as used.
func uniqueName(used map[string]bool, name string) string {
	candidate := name
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for n := 1; used[candidate]; n++ {
		candidate = fmt.Sprintf("%s_%d%s", stem, n, ext)
	}
	used[candidate] = true
	return candidate
}

func (b *Batch) item(i int) (data []byte, mimeType string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.items[i].Original, b.items[i].MimeType
}

// transition moves item i to st and notifies subscribers. Terminal items
// never move again.
func (b *Batch) transition(i int, st Status, result []byte, msg string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	it := b.items[i]
	if it.Status.Terminal() {
		return false
	}
	it.Status = st
	it.Result = result
	it.Error = msg

	ev := Event{BatchID: b.ID, Index: i, Status: st, Snapshot: b.snapshotLocked()}
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	return true
}

// finish closes every subscription; later subscribers get a closed channel.
func (b *Batch) finish() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

func (b *Batch) touch(now time.Time) {
	b.mu.Lock()
	b.lastAccess = now
	b.mu.Unlock()
}

func (b *Batch) idleSince() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastAccess
}
