package audio

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// stats holds playback statistics.
type stats struct {
	reg *prometheus.Registry

	framesDecoded  prometheus.Counter
	bytesCommitted prometheus.Counter
	slotRefills    prometheus.Counter
	underruns      prometheus.Counter
	ringOccupancy  prometheus.Gauge
	sessions       *prometheus.CounterVec

	framesDecodedAtomic atomic.Uint64
	underrunsAtomic     atomic.Uint64
}

func newStats() *stats {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	reg.MustRegister(collectors.NewGoCollector())
	return &stats{
		reg: reg,

		framesDecoded: f.NewCounter(prometheus.CounterOpts{
			Name: "playback_frames_decoded",
			Help: "Total number of frames decoded",
		}),
		bytesCommitted: f.NewCounter(prometheus.CounterOpts{
			Name: "playback_bytes_committed",
			Help: "Total bytes of decoded samples committed to the ring buffer",
		}),
		slotRefills: f.NewCounter(prometheus.CounterOpts{
			Name: "playback_slot_refills",
			Help: "Total number of output slots refilled",
		}),
		underruns: f.NewCounter(prometheus.CounterOpts{
			Name: "playback_underruns",
			Help: "Count of output slots or mixed frames that were padded with silence because the ring buffer ran short",
		}),
		ringOccupancy: f.NewGauge(prometheus.GaugeOpts{
			Name: "playback_ring_occupancy_bytes",
			Help: "Bytes in the ring buffer after the last slot refill",
		}),
		sessions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "playback_sessions",
			Help: "Count of finished playback sessions by result",
		}, []string{"result"}),
	}
}

func (s *stats) frameCommitted(n int) {
	s.framesDecoded.Inc()
	s.framesDecodedAtomic.Add(1)
	s.bytesCommitted.Add(float64(n))
}

func (s *stats) slotRefilled(ringLen int, underrun bool) {
	s.slotRefills.Inc()
	s.ringOccupancy.Set(float64(ringLen))
	if underrun {
		s.underran()
	}
}

// underran counts a slot or mix pull that came up short of decoded data.
func (s *stats) underran() {
	s.underruns.Inc()
	s.underrunsAtomic.Add(1)
}

// sessionResult returns the label of a session that ended with err.
func sessionResult(err error) string {
	switch StatusCode(err) {
	case 0:
		return "ok"
	case int(ErrStorage):
		return "storage"
	case int(ErrCorruptStream):
		return "corrupt"
	case int(ErrDecode):
		return "decode"
	case int(ErrOverflow):
		return "overflow"
	case int(ErrSlotIdentity):
		return "slot"
	default:
		return "other"
	}
}

// runReportStatsLoop runs a loop to report basic stats.
func (p *Player) runReportStatsLoop(ctx context.Context, reportInterval time.Duration) error {
	if reportInterval <= 0 {
		p.log.Debugf("Logging of stats is disabled")
		return nil
	}

	ticker := time.NewTicker(reportInterval)
	defer ticker.Stop()
	var tickTime, lastTick time.Time
	tickTime = time.Now()
	for {
		lastTick = tickTime

		select {
		case <-ctx.Done():
			return ctx.Err()
		case tickTime = <-ticker.C:
		}

		frames := p.stats.framesDecodedAtomic.Swap(0)
		underruns := p.stats.underrunsAtomic.Swap(0)
		if frames|underruns == 0 {
			// Skip if there are no stats.
			continue
		}

		p.log.Infof("Stats for the last %s - %d frames decoded, %d underruns",
			tickTime.Sub(lastTick).Round(time.Millisecond), frames, underruns)
	}
}
