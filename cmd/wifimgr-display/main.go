// Command wifimgr-display is the companion status display driver. It polls
// the local wifimgr API and renders connection status on an ILI9341 TFT.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/netplume/wifimgr-go/internal/identity"
	"github.com/netplume/wifimgr-go/internal/models"
)

// Screen is what one render pass needs to know.
type Screen struct {
	Status       models.Status
	SSID         string
	IP           string
	APSSID       string
	PortalActive bool
	Version      string
	Hostname     string
	Online       bool
}

func main() {
	var (
		addr       = flag.String("addr", "localhost:8080", "wifimgr API address")
		updateRate = flag.Int("update-rate", 1, "display update rate in seconds")
		logOnly    = flag.Bool("log-only", false, "skip the TFT and log the status instead")
		debug      = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	apiURL := fmt.Sprintf("http://%s/api/status", *addr)
	slog.Info("wifimgr-display starting", "api", apiURL, "rate", *updateRate)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, apiURL, time.Duration(*updateRate)*time.Second, *logOnly); err != nil {
		slog.Error("display driver failed", "err", err)
		os.Exit(1)
	}

	slog.Info("wifimgr-display stopped")
}

// run executes the poll-and-render loop until ctx is cancelled.
func run(ctx context.Context, apiURL string, rate time.Duration, logOnly bool) error {
	client := &http.Client{Timeout: 5 * time.Second}
	ticker := time.NewTicker(rate)
	defer ticker.Stop()

	consecutiveErrors := 0
	const maxConsecutiveErrors = 10

	update := func() error {
		screen, err := fetchScreen(ctx, client, apiURL)
		if err != nil {
			return fmt.Errorf("fetch status: %w", err)
		}
		if err := render(screen, logOnly); err != nil {
			return fmt.Errorf("render: %w", err)
		}
		return nil
	}

	if err := update(); err != nil {
		slog.Warn("initial display update failed", "err", err)
		consecutiveErrors++
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := update(); err != nil {
				consecutiveErrors++
				if consecutiveErrors >= maxConsecutiveErrors {
					return fmt.Errorf("too many consecutive errors (%d): %w", consecutiveErrors, err)
				}
				slog.Warn("display update failed", "err", err, "consecutive_errors", consecutiveErrors)
			} else {
				consecutiveErrors = 0
			}
		}
	}
}

// fetchScreen retrieves the daemon status and folds in local facts.
func fetchScreen(ctx context.Context, client *http.Client, apiURL string) (*Screen, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	var status models.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &Screen{
		Status:       status.Status,
		SSID:         status.SSID,
		IP:           status.IP,
		APSSID:       status.APSSID,
		PortalActive: status.PortalActive,
		Version:      status.Version,
		Hostname:     identity.Hostname(),
		Online:       identity.OnlineStatus(),
	}, nil
}

// Global TFT instance, initialized lazily on the first render.
var tftDisplay *TFT

func render(screen *Screen, logOnly bool) error {
	if logOnly {
		return renderLog(screen)
	}
	if tftDisplay == nil {
		var err error
		tftDisplay, err = NewTFT()
		if err != nil {
			slog.Warn("TFT init failed, falling back to log-only mode", "err", err)
			return renderLog(screen)
		}
	}
	if err := tftDisplay.RenderScreen(screen); err != nil {
		return fmt.Errorf("render to TFT: %w", err)
	}
	return nil
}

// renderLog logs the status for when no display hardware is present.
func renderLog(screen *Screen) error {
	slog.Info("display status",
		"status", screen.Status,
		"ssid", screen.SSID,
		"ip", screen.IP,
		"portal", screen.PortalActive,
		"ap_ssid", screen.APSSID,
		"online", screen.Online,
		"hostname", screen.Hostname,
	)
	return nil
}
