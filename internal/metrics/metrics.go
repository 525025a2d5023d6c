// Package metrics exposes pipeline counters in Prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the counters of both pipeline stages. It satisfies the
// observer interfaces of the frame loop, the helmet scanner and the
// plate resolver.
type Metrics struct {
	registry *prometheus.Registry

	framesProcessed prometheus.Counter
	detections      prometheus.Counter
	cropsSaved      prometheus.Counter
	violationsSaved prometheus.Counter
	platesResolved  prometheus.Counter
	platesDuplicate prometheus.Counter
	platesRejected  prometheus.Counter
}

// New builds a metrics set backed by its own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		framesProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "safeheads_frames_processed_total",
			Help: "Frames read from the video source.",
		}),
		detections: factory.NewCounter(prometheus.CounterOpts{
			Name: "safeheads_vehicle_detections_total",
			Help: "Tracked vehicle detections inside the region of interest.",
		}),
		cropsSaved: factory.NewCounter(prometheus.CounterOpts{
			Name: "safeheads_crops_saved_total",
			Help: "Vehicle crop images written to disk.",
		}),
		violationsSaved: factory.NewCounter(prometheus.CounterOpts{
			Name: "safeheads_violations_saved_total",
			Help: "Helmet violation artifacts written to disk.",
		}),
		platesResolved: factory.NewCounter(prometheus.CounterOpts{
			Name: "safeheads_plates_resolved_total",
			Help: "Plates accepted as valid and first-seen.",
		}),
		platesDuplicate: factory.NewCounter(prometheus.CounterOpts{
			Name: "safeheads_plates_duplicate_total",
			Help: "Plates discarded because they were already seen.",
		}),
		platesRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "safeheads_plates_rejected_total",
			Help: "Artifacts rejected before producing a record.",
		}),
	}
}

// Handler serves the registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) FrameProcessed()       { m.framesProcessed.Inc() }
func (m *Metrics) DetectionsFound(n int) { m.detections.Add(float64(n)) }
func (m *Metrics) CropsSaved(n int)      { m.cropsSaved.Add(float64(n)) }
func (m *Metrics) ViolationSaved()       { m.violationsSaved.Inc() }
func (m *Metrics) PlateResolved()        { m.platesResolved.Inc() }
func (m *Metrics) PlateDuplicate()       { m.platesDuplicate.Inc() }
func (m *Metrics) PlateRejected()        { m.platesRejected.Inc() }
