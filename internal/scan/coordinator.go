// Package scan bridges the radio's scan-done notifications to a dedicated
// worker that retrieves, deduplicates, and publishes scan results.
//
// The notification path is a one-slot, overwrite-on-repeat signal: only the
// most recent pending signal matters, and a completion signal supersedes a
// pending start. OnScanDone is safe to call from the radio event context as
// it never blocks.
package scan

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/netplume/wifimgr-go/internal/models"
	"github.com/netplume/wifimgr-go/internal/radio"
)

type signal int

const (
	startRequested signal = iota + 1
	completeRequested
)

// Radio is the subset of the radio driver the coordinator needs.
type Radio interface {
	Mode() radio.Mode
	ScanStart(ctx context.Context) error
	ScanResults(ctx context.Context) ([]models.Network, error)
}

// Coordinator owns the scan snapshot. Only its worker goroutine writes the
// snapshot; readers observe it through Snapshot and must treat the result as
// valid only when completed is true.
type Coordinator struct {
	drv      Radio
	statusFn func() models.Status
	onDone   func(count int) // invoked by the worker after each completion

	notify chan signal
	stop   chan struct{}
	wg     sync.WaitGroup

	mu        sync.RWMutex
	results   []models.Network
	completed bool
	inFlight  bool
}

// New creates a coordinator and starts its worker goroutine. statusFn reports
// the current connection status; scanning while associated is skipped because
// it is unsafe on shared-antenna hardware. onDone may be nil.
func New(drv Radio, statusFn func() models.Status, onDone func(count int)) *Coordinator {
	c := &Coordinator{
		drv:      drv,
		statusFn: statusFn,
		onDone:   onDone,
		notify:   make(chan signal, 1),
		stop:     make(chan struct{}),
	}
	c.wg.Add(1)
	go c.worker()
	return c
}

// Stop terminates the worker goroutine and waits for it to exit.
func (c *Coordinator) Stop() {
	close(c.stop)
	c.wg.Wait()
}

// RequestScan asks the worker to start a scan. Idempotent: while a scan is
// in flight the request is a no-op, so two back-to-back requests yield
// exactly one underlying scan command.
func (c *Coordinator) RequestScan() {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return
	}
	c.inFlight = true
	c.completed = false
	c.mu.Unlock()

	c.post(startRequested)
}

// OnScanDone hands a completion signal to the worker. Callable from the
// radio event context: it never blocks and never allocates.
func (c *Coordinator) OnScanDone() {
	c.post(completeRequested)
}

// post delivers a signal with overwrite semantics: if a signal is already
// pending it is replaced, never queued.
func (c *Coordinator) post(s signal) {
	for {
		select {
		case c.notify <- s:
			return
		default:
		}
		// Slot full — drain the stale signal and retry.
		select {
		case <-c.notify:
		default:
		}
	}
}

// Snapshot returns a copy of the current scan results and whether they are
// complete. Callers must ignore the slice when completed is false.
func (c *Coordinator) Snapshot() ([]models.Network, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.Network, len(c.results))
	copy(out, c.results)
	return out, c.completed
}

// InFlight reports whether a scan cycle is currently running.
func (c *Coordinator) InFlight() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.inFlight
}

// Reset clears the snapshot and flags ahead of a fresh scan cycle.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = nil
	c.completed = false
	c.inFlight = false
}

func (c *Coordinator) worker() {
	defer c.wg.Done()
	for {
		select {
		case <-c.stop:
			return
		case s := <-c.notify:
			switch s {
			case startRequested:
				c.startScan()
			case completeRequested:
				c.collectResults()
			}
		}
	}
}

// startScan validates preconditions and issues the non-blocking scan
// command. On any precondition or command failure the result is immediately
// marked completed with zero entries so callers never wait forever.
func (c *Coordinator) startScan() {
	if c.statusFn() == models.StatusConnected {
		slog.Debug("scan: skipping, already connected")
		c.finish(nil)
		return
	}
	if mode := c.drv.Mode(); !mode.ScanCapable() {
		slog.Warn("scan: radio mode cannot scan", "mode", mode.String())
		c.finish(nil)
		return
	}
	if err := c.drv.ScanStart(context.Background()); err != nil {
		slog.Warn("scan: start failed", "err", err)
		c.finish(nil)
	}
}

// collectResults retrieves raw results, deduplicates, and atomically
// replaces the snapshot.
func (c *Coordinator) collectResults() {
	raw, err := c.drv.ScanResults(context.Background())
	if err != nil {
		slog.Warn("scan: retrieving results failed", "err", err)
		c.finish(nil)
		return
	}
	nets := Dedupe(raw)
	slog.Debug("scan: completed", "raw", len(raw), "kept", len(nets))
	c.finish(nets)
}

func (c *Coordinator) finish(nets []models.Network) {
	c.mu.Lock()
	c.results = nets
	c.completed = true
	c.inFlight = false
	n := len(nets)
	c.mu.Unlock()

	if c.onDone != nil {
		c.onDone(n)
	}
}

// Dedupe collapses raw scan results to at most one entry per SSID, keeping
// the strongest reading. Hidden and empty-SSID records are dropped. The
// result is sorted strongest-first and truncated to MaxScanResults.
func Dedupe(raw []models.Network) []models.Network {
	best := make(map[string]models.Network, len(raw))
	for _, n := range raw {
		if n.Hidden || n.SSID == "" {
			continue
		}
		if prev, ok := best[n.SSID]; !ok || n.RSSI > prev.RSSI {
			best[n.SSID] = n
		}
	}

	out := make([]models.Network, 0, len(best))
	for _, n := range best {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RSSI != out[j].RSSI {
			return out[i].RSSI > out[j].RSSI
		}
		return out[i].SSID < out[j].SSID
	})
	if len(out) > models.MaxScanResults {
		out = out[:models.MaxScanResults]
	}
	return out
}
