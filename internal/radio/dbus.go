package radio

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/godbus/dbus/v5"

	"github.com/netplume/wifimgr-go/internal/models"
)

// wpa_supplicant D-Bus names.
const (
	wpasBusName   = "fi.w1.wpa_supplicant1"
	wpasRootPath  = "/fi/w1/wpa_supplicant1"
	wpasIfaceName = "fi.w1.wpa_supplicant1.Interface"
	wpasBSSName   = "fi.w1.wpa_supplicant1.BSS"
)

// DBusDriver drives a Linux WiFi interface through wpa_supplicant's D-Bus
// control interface. Address acquisition is detected by inspecting the
// kernel interface after wpa_supplicant reports the "completed" state
// (DHCP itself is owned by dhcpcd/systemd-networkd, not by us).
type DBusDriver struct {
	mu       sync.Mutex
	ifname   string
	conn     *dbus.Conn
	ifPath   dbus.ObjectPath
	netPath  dbus.ObjectPath // current station network object
	apPath   dbus.ObjectPath // current AP network object
	mode     Mode
	station  models.Credentials
	ap       APConfig
	events   chan Event
	sigCh    chan *dbus.Signal
	closed   bool
	lastAddr string
}

// NewDBus creates a wpa_supplicant driver for the given interface name
// (e.g. "wlan0").
func NewDBus(ifname string) *DBusDriver {
	return &DBusDriver{
		ifname: ifname,
		events: make(chan Event, eventBufferSize),
	}
}

func (d *DBusDriver) Init(ctx context.Context) error {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return fmt.Errorf("radio: connect system bus: %w", err)
	}
	d.conn = conn

	root := conn.Object(wpasBusName, wpasRootPath)
	var ifPath dbus.ObjectPath
	err = root.CallWithContext(ctx, wpasBusName+".GetInterface", 0, d.ifname).Store(&ifPath)
	if err != nil {
		// Interface not yet managed — ask wpa_supplicant to create it.
		args := map[string]interface{}{"Ifname": d.ifname}
		err = root.CallWithContext(ctx, wpasBusName+".CreateInterface", 0, args).Store(&ifPath)
		if err != nil {
			conn.Close()
			return fmt.Errorf("radio: interface %s: %w", d.ifname, err)
		}
	}
	d.ifPath = ifPath

	// Subscribe to ScanDone and PropertiesChanged on our interface object.
	if err := conn.AddMatchSignal(
		dbus.WithMatchObjectPath(ifPath),
		dbus.WithMatchInterface(wpasIfaceName),
	); err != nil {
		conn.Close()
		return fmt.Errorf("radio: match signals: %w", err)
	}
	d.sigCh = make(chan *dbus.Signal, 16)
	conn.Signal(d.sigCh)
	go d.signalLoop()

	slog.Info("radio: wpa_supplicant interface attached", "ifname", d.ifname, "path", string(ifPath))
	return nil
}

// signalLoop translates wpa_supplicant D-Bus signals into radio events,
// strictly in arrival order.
func (d *DBusDriver) signalLoop() {
	for sig := range d.sigCh {
		switch sig.Name {
		case wpasIfaceName + ".ScanDone":
			d.emit(Event{Type: EventScanDone})
		case wpasIfaceName + ".PropertiesChanged":
			if len(sig.Body) == 0 {
				continue
			}
			props, ok := sig.Body[0].(map[string]dbus.Variant)
			if !ok {
				continue
			}
			if v, ok := props["State"]; ok {
				if state, ok := v.Value().(string); ok {
					d.handleState(state)
				}
			}
		}
	}
}

func (d *DBusDriver) handleState(state string) {
	slog.Debug("radio: supplicant state", "state", state)
	switch state {
	case "associated":
		d.emit(Event{Type: EventStationConnected})
	case "completed":
		// Association done; the address shows up once DHCP finishes.
		// Report it as soon as the kernel has one.
		if addr := interfaceAddr(d.ifname); addr != "" {
			d.mu.Lock()
			d.lastAddr = addr
			d.mu.Unlock()
			d.emit(Event{Type: EventAddressAcquired, Addr: addr})
		} else {
			d.emit(Event{Type: EventStationConnected})
		}
	case "disconnected":
		d.mu.Lock()
		hadAddr := d.lastAddr != ""
		d.lastAddr = ""
		d.mu.Unlock()
		d.emit(Event{Type: EventStationDisconnected, Reason: state})
		if hadAddr {
			d.emit(Event{Type: EventAddressLost})
		}
	}
}

func (d *DBusDriver) emit(ev Event) {
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

func (d *DBusDriver) iface() dbus.BusObject {
	return d.conn.Object(wpasBusName, d.ifPath)
}

func (d *DBusDriver) SetMode(ctx context.Context, mode Mode) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mode = mode
	if mode == ModeAP || mode == ModeAPStation {
		return d.addAPNetworkLocked(ctx)
	}
	if d.apPath != "" {
		if err := d.iface().CallWithContext(ctx, wpasIfaceName+".RemoveNetwork", 0, d.apPath).Err; err != nil {
			slog.Warn("radio: remove AP network", "err", err)
		}
		d.apPath = ""
		d.emit(Event{Type: EventAPStopped})
	}
	return nil
}

func (d *DBusDriver) Mode() Mode {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mode
}

func (d *DBusDriver) SetStationConfig(ctx context.Context, creds models.Credentials) error {
	if creds.SSID == "" || len(creds.SSID) > models.MaxSSIDLen {
		return fmt.Errorf("radio: invalid ssid length %d", len(creds.SSID))
	}
	if len(creds.Passphrase) > models.MaxPassphraseLen {
		return fmt.Errorf("radio: passphrase too long")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.station = creds
	return nil
}

func (d *DBusDriver) SetAPConfig(ctx context.Context, cfg APConfig) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ap = cfg
	return nil
}

// addAPNetworkLocked registers a mode=2 (AP) network with wpa_supplicant and
// selects it. Caller holds d.mu.
func (d *DBusDriver) addAPNetworkLocked(ctx context.Context) error {
	props := map[string]interface{}{
		"ssid":      d.ap.SSID,
		"mode":      2,
		"frequency": 2412 + 5*(d.ap.Chan-1),
	}
	if d.ap.Secret != "" {
		props["psk"] = d.ap.Secret
		props["key_mgmt"] = "WPA-PSK"
	} else {
		props["key_mgmt"] = "NONE"
	}
	var netPath dbus.ObjectPath
	if err := d.iface().CallWithContext(ctx, wpasIfaceName+".AddNetwork", 0, props).Store(&netPath); err != nil {
		return fmt.Errorf("radio: add AP network: %w", err)
	}
	if err := d.iface().CallWithContext(ctx, wpasIfaceName+".SelectNetwork", 0, netPath).Err; err != nil {
		return fmt.Errorf("radio: select AP network: %w", err)
	}
	d.apPath = netPath
	d.emit(Event{Type: EventAPStarted})
	return nil
}

func (d *DBusDriver) Connect(ctx context.Context) error {
	d.mu.Lock()
	creds := d.station
	old := d.netPath
	d.mu.Unlock()
	if creds.SSID == "" {
		return fmt.Errorf("radio: no station config set")
	}

	if old != "" {
		_ = d.iface().CallWithContext(ctx, wpasIfaceName+".RemoveNetwork", 0, old).Err
	}

	props := map[string]interface{}{"ssid": creds.SSID}
	if creds.Passphrase != "" {
		props["psk"] = creds.Passphrase
	} else {
		props["key_mgmt"] = "NONE"
	}
	var netPath dbus.ObjectPath
	if err := d.iface().CallWithContext(ctx, wpasIfaceName+".AddNetwork", 0, props).Store(&netPath); err != nil {
		return fmt.Errorf("radio: add network: %w", err)
	}
	if err := d.iface().CallWithContext(ctx, wpasIfaceName+".SelectNetwork", 0, netPath).Err; err != nil {
		return fmt.Errorf("radio: select network: %w", err)
	}
	d.mu.Lock()
	d.netPath = netPath
	d.mu.Unlock()
	return nil
}

func (d *DBusDriver) Disconnect(ctx context.Context) error {
	return d.iface().CallWithContext(ctx, wpasIfaceName+".Disconnect", 0).Err
}

func (d *DBusDriver) ScanStart(ctx context.Context) error {
	args := map[string]interface{}{"Type": "active"}
	if err := d.iface().CallWithContext(ctx, wpasIfaceName+".Scan", 0, args).Err; err != nil {
		return fmt.Errorf("radio: scan: %w", err)
	}
	return nil
}

func (d *DBusDriver) ScanResults(ctx context.Context) ([]models.Network, error) {
	var bssPaths []dbus.ObjectPath
	v, err := d.iface().GetProperty(wpasIfaceName + ".BSSs")
	if err != nil {
		return nil, fmt.Errorf("radio: read BSSs: %w", err)
	}
	if err := v.Store(&bssPaths); err != nil {
		return nil, fmt.Errorf("radio: decode BSSs: %w", err)
	}

	nets := make([]models.Network, 0, len(bssPaths))
	for _, path := range bssPaths {
		bss := d.conn.Object(wpasBusName, path)
		n, err := readBSS(bss)
		if err != nil {
			slog.Debug("radio: skipping unreadable BSS", "path", string(path), "err", err)
			continue
		}
		nets = append(nets, n)
	}
	return nets, nil
}

func readBSS(bss dbus.BusObject) (models.Network, error) {
	var n models.Network

	v, err := bss.GetProperty(wpasBSSName + ".SSID")
	if err != nil {
		return n, err
	}
	var ssid []byte
	if err := v.Store(&ssid); err != nil {
		return n, err
	}
	n.SSID = string(ssid)
	n.Hidden = len(ssid) == 0

	v, err = bss.GetProperty(wpasBSSName + ".Signal")
	if err != nil {
		return n, err
	}
	var signal int16
	if err := v.Store(&signal); err != nil {
		return n, err
	}
	n.RSSI = int(signal)
	n.Quality = models.QualityFromRSSI(n.RSSI)
	n.Security = bssSecurity(bss)
	return n, nil
}

// bssSecurity derives the advertised security mode from the RSN/WPA
// properties, falling back to the privacy flag for WEP.
func bssSecurity(bss dbus.BusObject) models.Security {
	if keyMgmt(bss, wpasBSSName+".RSN") {
		return models.SecurityWPA2
	}
	if keyMgmt(bss, wpasBSSName+".WPA") {
		return models.SecurityWPA
	}
	if v, err := bss.GetProperty(wpasBSSName + ".Privacy"); err == nil {
		var priv bool
		if v.Store(&priv) == nil && priv {
			return models.SecurityWEP
		}
	}
	return models.SecurityOpen
}

func keyMgmt(bss dbus.BusObject, prop string) bool {
	v, err := bss.GetProperty(prop)
	if err != nil {
		return false
	}
	var m map[string]dbus.Variant
	if err := v.Store(&m); err != nil {
		return false
	}
	km, ok := m["KeyMgmt"]
	if !ok {
		return false
	}
	var kinds []string
	if err := km.Store(&kinds); err != nil {
		return false
	}
	return len(kinds) > 0
}

func (d *DBusDriver) Events() <-chan Event { return d.events }

func (d *DBusDriver) IsReal() bool { return true }

func (d *DBusDriver) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	if d.conn != nil {
		d.conn.RemoveSignal(d.sigCh)
		d.conn.Close()
	}
	if d.sigCh != nil {
		close(d.sigCh)
	}
	close(d.events)
	return nil
}

// interfaceAddr returns the first global unicast IPv4 address of ifname,
// or "" if the interface has none yet.
func interfaceAddr(ifname string) string {
	iface, err := net.InterfaceByName(ifname)
	if err != nil {
		return ""
	}
	addrs, err := iface.Addrs()
	if err != nil {
		return ""
	}
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		ip := ipNet.IP.To4()
		if ip != nil && !ip.IsLinkLocalUnicast() && !ip.IsLoopback() {
			return ip.String()
		}
	}
	return ""
}

// Ensure DBusDriver implements Driver
var _ Driver = (*DBusDriver)(nil)
