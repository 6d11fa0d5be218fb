package audiocore

import (
	"cmp"
	"slices"
	"sync"
	"time"
)

// ChannelStats describes one direction of a stream.
type ChannelStats struct {
	Channels          int    `json:"channels"`
	TransferredFrames uint64 `json:"transferred_frames"`
	ShortTransfers    uint64 `json:"short_transfers"`
	Queued            int    `json:"queued"`
	BufferedFrames    int    `json:"buffered_frames"`
	CapacityFrames    int    `json:"capacity_frames"`
}

// StreamStats is a snapshot of a stream's counters.
type StreamStats struct {
	Callback CallbackStats `json:"callback"`
	Sink     *ChannelStats `json:"sink,omitempty"`
	Source   *ChannelStats `json:"source,omitempty"`
}

// StreamInfo describes an open stream.
type StreamInfo struct {
	ID         string      `json:"id"`
	Backend    string      `json:"backend"`
	Device     string      `json:"device"`
	Format     string      `json:"format"`
	SampleRate int         `json:"sample_rate"`
	State      string      `json:"state"`
	OpenedAt   time.Time   `json:"opened_at"`
	Stats      StreamStats `json:"stats"`
}

// registered is implemented by every Stream instantiation.
type registered interface {
	Info() StreamInfo
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]registered)
)

func register(id string, s registered) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[id] = s
}

func unregister(id string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(registry, id)
}

// Streams returns information on every open stream, oldest first.
func Streams() []StreamInfo {
	registryMu.RLock()
	streams := make([]registered, 0, len(registry))
	for _, s := range registry {
		streams = append(streams, s)
	}
	registryMu.RUnlock()

	infos := make([]StreamInfo, 0, len(streams))
	for _, s := range streams {
		infos = append(infos, s.Info())
	}
	slices.SortFunc(infos, func(a, b StreamInfo) int {
		if c := a.OpenedAt.Compare(b.OpenedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return infos
}
