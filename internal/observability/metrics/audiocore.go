package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tphakala/audiobridge/internal/audiocore"
)

// AudioCoreMetrics exports the counters of every open stream. Values are
// read from audiocore.Streams at scrape time, so nothing on the audio path
// touches Prometheus.
type AudioCoreMetrics struct {
	source func() []audiocore.StreamInfo

	streamsOpen     *prometheus.Desc
	streamInfo      *prometheus.Desc
	callbacks       *prometheus.Desc
	framesProcessed *prometheus.Desc
	droppedSamples  *prometheus.Desc
	silencedSamples *prometheus.Desc
	xruns           *prometheus.Desc

	transferredFrames *prometheus.Desc
	shortTransfers    *prometheus.Desc
	queuedTransfers   *prometheus.Desc
	bufferedFrames    *prometheus.Desc
	capacityFrames    *prometheus.Desc
}

// NewAudioCoreMetrics creates and registers the stream collector.
func NewAudioCoreMetrics(registry *prometheus.Registry) (*AudioCoreMetrics, error) {
	m := newAudioCoreMetrics(audiocore.Streams)
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func newAudioCoreMetrics(source func() []audiocore.StreamInfo) *AudioCoreMetrics {
	streamLabels := []string{"stream_id"}
	channelLabels := []string{"stream_id", "direction"}
	desc := func(name, help string, labels []string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(Namespace, "", name), help, labels, nil)
	}

	return &AudioCoreMetrics{
		source: source,

		streamsOpen: desc("streams_open", "Number of open audio streams", []string{"backend"}),
		streamInfo: desc("stream_info", "Static description of an open stream, value is always 1",
			[]string{"stream_id", "backend", "device", "format", "sample_rate", "state"}),
		callbacks:       desc("stream_callbacks_total", "Engine callbacks serviced", streamLabels),
		framesProcessed: desc("stream_frames_processed_total", "Frames handled by the engine callback", streamLabels),
		droppedSamples:  desc("stream_dropped_samples_total", "Captured samples dropped because the capture ring was full", streamLabels),
		silencedSamples: desc("stream_silenced_samples_total", "Playback samples filled with silence because the playback ring was empty", streamLabels),
		xruns:           desc("stream_xruns_total", "Overflows and underflows reported by the device", streamLabels),

		transferredFrames: desc("channel_transferred_frames_total", "Frames moved by blocking transfers", channelLabels),
		shortTransfers:    desc("channel_short_transfers_total", "Transfers that returned fewer frames than requested", channelLabels),
		queuedTransfers:   desc("channel_queued_transfers", "Transfers waiting for the channel", channelLabels),
		bufferedFrames:    desc("channel_buffered_frames", "Frames currently held in the ring", channelLabels),
		capacityFrames:    desc("channel_capacity_frames", "Ring capacity in frames", channelLabels),
	}
}

// Describe implements the Collector interface
func (m *AudioCoreMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		m.streamsOpen, m.streamInfo, m.callbacks, m.framesProcessed,
		m.droppedSamples, m.silencedSamples, m.xruns,
		m.transferredFrames, m.shortTransfers, m.queuedTransfers,
		m.bufferedFrames, m.capacityFrames,
	} {
		ch <- d
	}
}

// Collect implements the Collector interface
func (m *AudioCoreMetrics) Collect(ch chan<- prometheus.Metric) {
	streams := m.source()

	perBackend := make(map[string]int)
	for i := range streams {
		info := &streams[i]
		perBackend[info.Backend]++

		ch <- prometheus.MustNewConstMetric(m.streamInfo, prometheus.GaugeValue, 1,
			info.ID, info.Backend, info.Device, info.Format, strconv.Itoa(info.SampleRate), info.State)

		cb := info.Stats.Callback
		counter := func(d *prometheus.Desc, v uint64) {
			ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), info.ID)
		}
		counter(m.callbacks, cb.Callbacks)
		counter(m.framesProcessed, cb.Frames)
		counter(m.droppedSamples, cb.DroppedSamples)
		counter(m.silencedSamples, cb.SilencedSamples)
		counter(m.xruns, cb.Xruns)

		m.collectChannel(ch, info.ID, audiocore.DirectionSink.String(), info.Stats.Sink)
		m.collectChannel(ch, info.ID, audiocore.DirectionSource.String(), info.Stats.Source)
	}

	for backend, n := range perBackend {
		ch <- prometheus.MustNewConstMetric(m.streamsOpen, prometheus.GaugeValue, float64(n), backend)
	}
}

func (m *AudioCoreMetrics) collectChannel(ch chan<- prometheus.Metric, id, direction string, st *audiocore.ChannelStats) {
	if st == nil {
		return
	}
	ch <- prometheus.MustNewConstMetric(m.transferredFrames, prometheus.CounterValue, float64(st.TransferredFrames), id, direction)
	ch <- prometheus.MustNewConstMetric(m.shortTransfers, prometheus.CounterValue, float64(st.ShortTransfers), id, direction)
	ch <- prometheus.MustNewConstMetric(m.queuedTransfers, prometheus.GaugeValue, float64(st.Queued), id, direction)
	ch <- prometheus.MustNewConstMetric(m.bufferedFrames, prometheus.GaugeValue, float64(st.BufferedFrames), id, direction)
	ch <- prometheus.MustNewConstMetric(m.capacityFrames, prometheus.GaugeValue, float64(st.CapacityFrames), id, direction)
}
