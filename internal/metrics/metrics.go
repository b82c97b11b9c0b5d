package metrics

import (
	"context"
	"errors"
	"net/http"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/BrandonDHaskell/nfcgate/internal/nfcgate/service"
	"github.com/BrandonDHaskell/nfcgate/internal/nfcgate/types"
)

const namespace = "nfcgate"

// Collector counts scan outcomes and failures on a private registry. It
// observes the engine and never influences a decision.
type Collector struct {
	registry *prom.Registry

	scans      *prom.CounterVec
	scanErrors *prom.CounterVec
	mode       prom.Gauge
	reader     prom.Gauge
}

func New() *Collector {
	c := &Collector{
		registry: prom.NewRegistry(),
		scans: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "scans_total",
			Help:      "Processed scans by outcome.",
		}, []string{"outcome"}),
		scanErrors: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "scan_errors_total",
			Help:      "Scans that hit a store or journal failure.",
		}, []string{"kind"}),
		mode: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "registration_mode",
			Help:      "1 while registration mode is active.",
		}),
		reader: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "reader_connected",
			Help:      "1 while a serial reader session is live.",
		}),
	}
	c.registry.MustRegister(
		c.scans, c.scanErrors, c.mode, c.reader,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

func (c *Collector) ScanProcessed(_ context.Context, out types.Outcome, _ *types.AccessEvent) {
	c.scans.WithLabelValues(string(out.Kind)).Inc()
	if out.Kind == types.OutcomeMasterKeyToggled || out.Kind == types.OutcomeModeOverride {
		c.mode.Set(boolGauge(out.RegistrationMode))
	}
}

func (c *Collector) ScanFailed(_ context.Context, _ string, err error) {
	kind := "other"
	switch {
	case errors.Is(err, service.ErrJournal):
		kind = "journal"
	case errors.Is(err, service.ErrStore):
		kind = "store"
	}
	c.scanErrors.WithLabelValues(kind).Inc()
}

// ReaderConnected matches the serial reader's connection hook.
func (c *Collector) ReaderConnected(connected bool, _ string) {
	c.reader.Set(boolGauge(connected))
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func boolGauge(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
