// Copyright (c) 2026 The peerdir developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/peerdir/peerdird/addrmgr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "peerdird"

// dirMetrics houses the prometheus collectors describing the directory.
type dirMetrics struct {
	registry *prometheus.Registry

	addresses     prometheus.Gauge
	peers         prometheus.Gauge
	timeOffsets   prometheus.Gauge
	added         prometheus.Counter
	rejected      *prometheus.CounterVec
	selected      prometheus.Counter
	badTimeEvents prometheus.Counter
	saves         prometheus.Counter
}

// newDirMetrics returns the directory collectors registered with a dedicated
// registry.  The network time offset is read straight from the address
// manager on every scrape.
func newDirMetrics(amgr *addrmgr.AddrManager) *dirMetrics {
	m := &dirMetrics{
		registry: prometheus.NewRegistry(),
		addresses: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "addresses",
			Help:      "Number of known addresses.",
		}),
		peers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "peers",
			Help:      "Number of tracked connected peers.",
		}),
		timeOffsets: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "time_offset_samples",
			Help:      "Number of peers that reported a clock offset.",
		}),
		added: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "addresses_added_total",
			Help:      "Number of addresses accepted into the directory.",
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "addresses_rejected_total",
			Help:      "Number of addresses refused by the directory.",
		}, []string{"reason"}),
		selected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "addresses_selected_total",
			Help:      "Number of addresses handed out for connection.",
		}),
		badTimeEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "bad_time_events_total",
			Help:      "Number of times the peer clocks disagreed with the local clock.",
		}),
		saves: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "saves_total",
			Help:      "Number of successful saves of the known addresses.",
		}),
	}
	networkOffset := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "network_time_offset_seconds",
		Help:      "Offset of the network time from the local clock.",
	}, func() float64 {
		return amgr.NetworkTimeOffset().Seconds()
	})

	m.registry.MustRegister(m.addresses, m.peers, m.timeOffsets, m.added,
		m.rejected, m.selected, m.badTimeEvents, m.saves, networkOffset)
	return m
}

// update refreshes the gauges from the address manager.  It must be called
// from the goroutine owning the manager.
func (m *dirMetrics) update(amgr *addrmgr.AddrManager) {
	m.addresses.Set(float64(amgr.NumAddresses()))
	m.peers.Set(float64(amgr.NumPeers()))
	m.timeOffsets.Set(float64(amgr.NumTimeOffsets()))
}

// rejectReason returns the metric label describing why an address was
// refused.
func rejectReason(err error) string {
	var kind addrmgr.ErrorKind
	if errors.As(err, &kind) {
		return string(kind)
	}
	return "other"
}

// serveMetrics serves the collected metrics on listen until the context is
// canceled.
func (m *dirMetrics) serveMetrics(ctx context.Context, listen string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry,
		promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		srvrLog.Infof("Metrics server listening on %s/metrics", listen)
		errChan <- srv.ListenAndServe()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	srvrLog.Infof("Metrics server shutdown")
	return nil
}
