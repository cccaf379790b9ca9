package radio

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
	"golang.org/x/time/rate"

	"github.com/netplume/wifimgr-go/internal/models"
)

// maxCmdsPerSec bounds the AT command rate. The co-processor's UART parser
// drops bytes when commands arrive back to back.
const maxCmdsPerSec = 10

// cmdTimeout is the per-command response deadline. CWJAP can take several
// seconds while the co-processor associates.
const cmdTimeout = 10 * time.Second

// ATModemDriver drives a UART-attached WiFi co-processor speaking an
// ESP-AT-style command set. Unsolicited result codes ("WIFI CONNECTED",
// "WIFI GOT IP:…", "+CWLAP:…") arrive interleaved with command responses;
// a single reader goroutine owns the port and routes both.
type ATModemDriver struct {
	mu      sync.Mutex
	device  string
	baud    int
	port    serial.Port
	limiter *rate.Limiter
	mode    Mode
	station models.Credentials
	ap      APConfig
	events  chan Event
	closed  bool

	// respCh delivers final response lines (OK/ERROR) to the command in
	// flight; only one command may be outstanding at a time (cmdMu).
	cmdMu  sync.Mutex
	respCh chan string

	// scan results accumulated from +CWLAP lines since the last ScanStart
	scanMu   sync.Mutex
	scanNets []models.Network
}

// NewATModem creates a driver for a co-processor on the given serial device.
func NewATModem(device string, baud int) *ATModemDriver {
	if baud == 0 {
		baud = 115200
	}
	return &ATModemDriver{
		device:  device,
		baud:    baud,
		limiter: rate.NewLimiter(rate.Limit(maxCmdsPerSec), 2),
		events:  make(chan Event, eventBufferSize),
		respCh:  make(chan string, 1),
	}
}

func (d *ATModemDriver) Init(ctx context.Context) error {
	port, err := serial.Open(d.device, &serial.Mode{
		BaudRate: d.baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return fmt.Errorf("radio: open %s: %w", d.device, err)
	}
	d.mu.Lock()
	d.port = port
	d.mu.Unlock()

	go d.readLoop(port)

	// Probe: a bare AT must answer OK before we trust the link.
	if err := d.command(ctx, "AT"); err != nil {
		return fmt.Errorf("radio: co-processor not responding on %s: %w", d.device, err)
	}
	// Disable command echo so responses parse cleanly.
	if err := d.command(ctx, "ATE0"); err != nil {
		slog.Warn("radio: could not disable echo", "err", err)
	}
	slog.Info("radio: AT co-processor attached", "device", d.device, "baud", d.baud)
	return nil
}

// readLoop owns the serial port for reading. It routes unsolicited result
// codes to the event channel and final result lines to the pending command.
func (d *ATModemDriver) readLoop(port serial.Port) {
	scanner := bufio.NewScanner(port)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		switch {
		case line == "WIFI CONNECTED":
			d.emit(Event{Type: EventStationConnected})
		case strings.HasPrefix(line, "WIFI GOT IP"):
			addr := ""
			if i := strings.IndexByte(line, ':'); i >= 0 {
				addr = strings.Trim(line[i+1:], "\" ")
			}
			d.emit(Event{Type: EventAddressAcquired, Addr: addr})
		case line == "WIFI DISCONNECT":
			d.emit(Event{Type: EventStationDisconnected, Reason: "disconnect"})
			d.emit(Event{Type: EventAddressLost})
		case strings.HasPrefix(line, "+STA_CONNECTED:"):
			d.emit(Event{Type: EventStaJoinedAP, MAC: strings.Trim(line[15:], "\"")})
		case strings.HasPrefix(line, "+STA_DISCONNECTED:"):
			d.emit(Event{Type: EventStaLeftAP, MAC: strings.Trim(line[18:], "\"")})
		case strings.HasPrefix(line, "+CWLAP:"):
			d.collectScanLine(line[7:])
		case line == "SCAN DONE":
			d.emit(Event{Type: EventScanDone})
		case line == "OK" || line == "ERROR" || strings.HasPrefix(line, "+CME ERROR"):
			select {
			case d.respCh <- line:
			default:
				slog.Debug("radio: unmatched final response", "line", line)
			}
		default:
			slog.Debug("radio: unhandled line", "line", line)
		}
	}
}

// collectScanLine parses one +CWLAP record: (sec,"ssid",rssi,"mac",chan).
func (d *ATModemDriver) collectScanLine(body string) {
	body = strings.TrimPrefix(body, "(")
	body = strings.TrimSuffix(body, ")")
	fields := splitCSV(body)
	if len(fields) < 3 {
		return
	}
	sec, err := strconv.Atoi(fields[0])
	if err != nil {
		return
	}
	ssid := strings.Trim(fields[1], "\"")
	rssi, err := strconv.Atoi(fields[2])
	if err != nil {
		return
	}

	n := models.Network{
		SSID:     ssid,
		RSSI:     rssi,
		Quality:  models.QualityFromRSSI(rssi),
		Security: ecnToSecurity(sec),
		Hidden:   ssid == "",
	}
	d.scanMu.Lock()
	d.scanNets = append(d.scanNets, n)
	d.scanMu.Unlock()
}

// splitCSV splits on commas that are outside double quotes.
func splitCSV(s string) []string {
	var out []string
	var b strings.Builder
	inQuote := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"':
			inQuote = !inQuote
			b.WriteByte(c)
		case c == ',' && !inQuote:
			out = append(out, b.String())
			b.Reset()
		default:
			b.WriteByte(c)
		}
	}
	out = append(out, b.String())
	return out
}

// ecnToSecurity maps the AT <ecn> field onto our security enum.
func ecnToSecurity(ecn int) models.Security {
	switch ecn {
	case 0:
		return models.SecurityOpen
	case 1:
		return models.SecurityWEP
	case 2:
		return models.SecurityWPA
	case 3, 4:
		return models.SecurityWPA2
	case 6, 7:
		return models.SecurityWPA3
	default:
		return models.SecurityWPA2
	}
}

// command sends one AT command and waits for its final result line.
func (d *ATModemDriver) command(ctx context.Context, cmd string) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}
	d.cmdMu.Lock()
	defer d.cmdMu.Unlock()

	d.mu.Lock()
	port := d.port
	d.mu.Unlock()
	if port == nil {
		return fmt.Errorf("radio: driver not initialized")
	}

	// Drop any stale final response from a timed-out predecessor.
	select {
	case <-d.respCh:
	default:
	}

	if _, err := port.Write([]byte(cmd + "\r\n")); err != nil {
		return fmt.Errorf("radio: write %q: %w", cmd, err)
	}

	timer := time.NewTimer(cmdTimeout)
	defer timer.Stop()
	select {
	case line := <-d.respCh:
		if line != "OK" {
			return fmt.Errorf("radio: %q failed: %s", cmd, line)
		}
		return nil
	case <-timer.C:
		return fmt.Errorf("radio: %q timed out", cmd)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *ATModemDriver) SetMode(ctx context.Context, mode Mode) error {
	// AT+CWMODE: 1=station, 2=ap, 3=ap+station
	var n int
	switch mode {
	case ModeStation:
		n = 1
	case ModeAP:
		n = 2
	case ModeAPStation:
		n = 3
	case ModeOff:
		n = 0
	}
	if err := d.command(ctx, fmt.Sprintf("AT+CWMODE=%d", n)); err != nil {
		return err
	}
	d.mu.Lock()
	prev := d.mode
	d.mode = mode
	d.mu.Unlock()
	if mode == ModeAP || mode == ModeAPStation {
		d.emit(Event{Type: EventAPStarted})
	} else if prev == ModeAP || prev == ModeAPStation {
		d.emit(Event{Type: EventAPStopped})
	}
	return nil
}

func (d *ATModemDriver) Mode() Mode {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mode
}

func (d *ATModemDriver) SetStationConfig(ctx context.Context, creds models.Credentials) error {
	if creds.SSID == "" || len(creds.SSID) > models.MaxSSIDLen {
		return fmt.Errorf("radio: invalid ssid length %d", len(creds.SSID))
	}
	if len(creds.Passphrase) > models.MaxPassphraseLen {
		return fmt.Errorf("radio: passphrase too long")
	}
	d.mu.Lock()
	d.station = creds
	d.mu.Unlock()
	return nil
}

func (d *ATModemDriver) SetAPConfig(ctx context.Context, cfg APConfig) error {
	ch := cfg.Chan
	if ch == 0 {
		ch = 1
	}
	// <ecn>: 0=open, 3=WPA2-PSK
	ecn := 0
	if cfg.Secret != "" {
		ecn = 3
	}
	cmd := fmt.Sprintf("AT+CWSAP=%q,%q,%d,%d", cfg.SSID, cfg.Secret, ch, ecn)
	if err := d.command(ctx, cmd); err != nil {
		return err
	}
	d.mu.Lock()
	d.ap = cfg
	d.mu.Unlock()
	return nil
}

func (d *ATModemDriver) Connect(ctx context.Context) error {
	d.mu.Lock()
	creds := d.station
	d.mu.Unlock()
	if creds.SSID == "" {
		return fmt.Errorf("radio: no station config set")
	}
	// CWJAP returns OK as soon as the join is accepted; association progress
	// arrives as WIFI CONNECTED / WIFI GOT IP unsolicited codes.
	return d.command(ctx, fmt.Sprintf("AT+CWJAP=%q,%q", creds.SSID, creds.Passphrase))
}

func (d *ATModemDriver) Disconnect(ctx context.Context) error {
	return d.command(ctx, "AT+CWQAP")
}

func (d *ATModemDriver) ScanStart(ctx context.Context) error {
	d.scanMu.Lock()
	d.scanNets = nil
	d.scanMu.Unlock()
	// Async scan form: records stream in as +CWLAP lines, then SCAN DONE.
	return d.command(ctx, "AT+CWLAP")
}

func (d *ATModemDriver) ScanResults(ctx context.Context) ([]models.Network, error) {
	d.scanMu.Lock()
	defer d.scanMu.Unlock()
	out := make([]models.Network, len(d.scanNets))
	copy(out, d.scanNets)
	return out, nil
}

func (d *ATModemDriver) emit(ev Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	select {
	case d.events <- ev:
	default:
		slog.Warn("radio: event channel full, dropping", "event", ev.Type.String())
	}
}

func (d *ATModemDriver) Events() <-chan Event { return d.events }

func (d *ATModemDriver) IsReal() bool { return true }

func (d *ATModemDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	if d.port != nil {
		d.port.Close()
	}
	close(d.events)
	return nil
}

// Ensure ATModemDriver implements Driver
var _ Driver = (*ATModemDriver)(nil)
