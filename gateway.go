package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"i4.energy/across/wifigw/ipd"
	"i4.energy/across/wifigw/modem"
	"i4.energy/across/wifigw/ssdp"
)

// DiscoveryLink is the modem link reserved for SSDP. ESP-AT hands out ids
// 0-4 and the TCP server fills them from the bottom.
const DiscoveryLink = 4

var ErrLinkClosed = errors.New("modem link closed")

// Snapshot is the state reported by the status endpoints.
type Snapshot struct {
	On        bool         `json:"on"`
	Status    int          `json:"status"`
	Address   string       `json:"address,omitempty"`
	Links     []modem.Link `json:"links"`
	Frames    uint64       `json:"frames"`
	Truncated uint64       `json:"truncated"`
	Resyncs   uint64       `json:"resyncs"`
	Malformed uint64       `json:"malformed"`
	Discarded uint64       `json:"discarded_bytes"`
	Overruns  uint64       `json:"ring_overruns"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Gateway runs the polling loop: it owns the modem and the frame
// demultiplexer and is the only goroutine that talks to either.
type Gateway struct {
	modem     *modem.Modem
	config    *Config
	logger    *slog.Logger
	discovery *ssdp.Responder

	demux    *ipd.Demux
	link     modem.Status
	address  string
	snapshot atomic.Pointer[Snapshot]
}

func NewGateway(m *modem.Modem, config *Config, discovery *ssdp.Responder, logger *slog.Logger) *Gateway {
	g := &Gateway{
		modem:     m,
		config:    config,
		discovery: discovery,
		logger:    logger.With("component", "gateway"),
	}
	g.snapshot.Store(&Snapshot{})
	return g
}

// Snapshot returns the state published by the last loop iteration. It is
// safe to call from any goroutine.
func (g *Gateway) Snapshot() Snapshot {
	return *g.snapshot.Load()
}

// Run feeds inbound frames to handler until ctx is done or the modem link
// drops.
func (g *Gateway) Run(ctx context.Context, handler ipd.Handler) error {
	g.demux = ipd.NewDemux(g.modem.Source(), handler,
		ipd.WithStagingSize(g.config.StagingSize),
		ipd.WithDiscardTimeout(g.config.DiscardTimeout),
		ipd.WithLogger(g.logger),
	)
	g.modem.SetSpill(g.demux)
	defer g.modem.SetSpill(nil)

	var announce <-chan time.Time
	if g.discovery != nil {
		if err := g.startDiscovery(ctx); err != nil {
			return err
		}
		t := time.NewTicker(g.config.AnnounceInterval)
		defer t.Stop()
		announce = t.C
	}

	g.refresh(ctx)

	poll := time.NewTicker(g.config.PollInterval)
	defer poll.Stop()
	var status <-chan time.Time
	if g.config.StatusInterval > 0 {
		t := time.NewTicker(g.config.StatusInterval)
		defer t.Stop()
		status = t.C
	}

	g.logger.Info("Gateway running", "listen_port", g.config.ListenPort, "discovery", g.discovery != nil)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-g.modem.Done():
			if err := g.modem.Err(); err != nil {
				return fmt.Errorf("%w: %w", ErrLinkClosed, err)
			}
			return ErrLinkClosed
		case <-g.modem.Source().Readable():
		case <-poll.C:
		case <-status:
			g.refresh(ctx)
		case <-announce:
			if err := g.discovery.Announce(ctx); err != nil {
				g.logger.Warn("Announcement failed", "error", err)
			}
		}
		g.demux.Process(ctx)
		g.publish()
	}
}

func (g *Gateway) startDiscovery(ctx context.Context) error {
	if err := g.modem.ShowRemote(ctx, true); err != nil {
		return err
	}
	if err := g.modem.OpenUDP(ctx, DiscoveryLink, ssdp.MulticastAddr, ssdp.Port, ssdp.Port); err != nil {
		return err
	}
	if err := g.discovery.Announce(ctx); err != nil {
		g.logger.Warn("Announcement failed", "error", err)
	}
	return nil
}

// refresh queries link status. Failures keep the previous values.
func (g *Gateway) refresh(ctx context.Context) {
	if st, err := g.modem.Status(ctx); err != nil {
		g.logger.Warn("Status query failed", "error", err)
	} else {
		g.link = st
	}
	if addr, err := g.modem.LocalAddress(ctx); err != nil {
		g.logger.Debug("Address query failed", "error", err)
	} else {
		g.address = addr.String()
	}
	g.publish()
}

func (g *Gateway) publish() {
	stats := g.demux.Stats()
	g.snapshot.Store(&Snapshot{
		Status:    g.link.Code,
		Address:   g.address,
		Links:     g.link.Links,
		Frames:    stats.Frames,
		Truncated: stats.Truncated,
		Resyncs:   stats.Resyncs,
		Malformed: stats.Malformed,
		Discarded: stats.Discarded,
		Overruns:  g.modem.Source().Overruns(),
		UpdatedAt: time.Now(),
	})
}

// Shutdown stops the listening server and closes the modem.
func (g *Gateway) Shutdown(ctx context.Context) error {
	var errs []error
	if err := g.modem.StopServer(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := g.modem.Close(); err != nil && !errors.Is(err, modem.ErrAlreadyClosed) {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
