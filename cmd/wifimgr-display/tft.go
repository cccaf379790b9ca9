//go:build linux

package main

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"log/slog"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/netplume/wifimgr-go/internal/models"
)

// TFT holds the ILI9341 display state.
type TFT struct {
	spiDev    spi.Conn
	dc        gpio.PinOut
	backlight gpio.PinOut
	width     int
	height    int
	img       *image.RGBA
}

const (
	// ILI9341 commands
	cmdSWRESET = 0x01
	cmdSLPOUT  = 0x11
	cmdDISPON  = 0x29
	cmdCASet   = 0x2A
	cmdPASet   = 0x2B
	cmdRAMWR   = 0x2C
	cmdMADCTL  = 0x36
	cmdPIXFMT  = 0x3A

	displayWidth  = 320
	displayHeight = 240

	spiDevPath = "/dev/spidev0.0"
	dcPinName  = "GPIO25"
	blPinName  = "GPIO18"
)

// NewTFT initializes the TFT display.
func NewTFT() (*TFT, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph.io init: %w", err)
	}

	port, err := spireg.Open(spiDevPath)
	if err != nil {
		return nil, fmt.Errorf("open SPI: %w", err)
	}
	conn, err := port.Connect(16*physic.MegaHertz, spi.Mode0, 8)
	if err != nil {
		return nil, fmt.Errorf("connect SPI: %w", err)
	}

	dc := gpioreg.ByName(dcPinName)
	if dc == nil {
		return nil, fmt.Errorf("failed to open %s (DC pin)", dcPinName)
	}
	backlight := gpioreg.ByName(blPinName)
	if backlight == nil {
		return nil, fmt.Errorf("failed to open %s (backlight pin)", blPinName)
	}

	tft := &TFT{
		spiDev:    conn,
		dc:        dc,
		backlight: backlight,
		width:     displayWidth,
		height:    displayHeight,
		img:       image.NewRGBA(image.Rect(0, 0, displayWidth, displayHeight)),
	}

	if err := tft.init(); err != nil {
		return nil, fmt.Errorf("init display: %w", err)
	}

	slog.Info("TFT display initialized", "width", displayWidth, "height", displayHeight)
	return tft, nil
}

// init runs the ILI9341 power-up sequence.
func (t *TFT) init() error {
	if err := t.backlight.Out(gpio.High); err != nil {
		return fmt.Errorf("set backlight: %w", err)
	}

	if err := t.writeCommand(cmdSWRESET); err != nil {
		return err
	}
	if err := t.writeCommand(cmdSLPOUT); err != nil {
		return err
	}

	// Power control
	if err := t.writeCommand(0xC0, 0x23); err != nil {
		return err
	}
	if err := t.writeCommand(0xC1, 0x10); err != nil {
		return err
	}

	// VCM control
	if err := t.writeCommand(0xC5, 0x3E, 0x28); err != nil {
		return err
	}
	if err := t.writeCommand(0xC7, 0x86); err != nil {
		return err
	}

	// Landscape orientation
	if err := t.writeCommand(cmdMADCTL, 0xE8); err != nil {
		return err
	}

	// Pixel format: 16-bit color (RGB565)
	if err := t.writeCommand(cmdPIXFMT, 0x55); err != nil {
		return err
	}

	// Frame rate control
	if err := t.writeCommand(0xB1, 0x00, 0x18); err != nil {
		return err
	}

	// Display function control
	if err := t.writeCommand(0xB6, 0x08, 0x82, 0x27); err != nil {
		return err
	}

	if err := t.writeCommand(cmdDISPON); err != nil {
		return err
	}

	slog.Debug("ILI9341 initialization complete")
	return nil
}

// writeCommand writes a command and optional data bytes to the display.
func (t *TFT) writeCommand(cmd byte, data ...byte) error {
	// DC low = command
	if err := t.dc.Out(gpio.Low); err != nil {
		return err
	}
	if err := t.spiDev.Tx([]byte{cmd}, nil); err != nil {
		return err
	}
	if len(data) > 0 {
		if err := t.dc.Out(gpio.High); err != nil {
			return err
		}
		if err := t.spiDev.Tx(data, nil); err != nil {
			return err
		}
	}
	return nil
}

// setWindow sets the drawing window on the display.
func (t *TFT) setWindow(x0, y0, x1, y1 int) error {
	if err := t.writeCommand(cmdCASet,
		byte(x0>>8), byte(x0),
		byte(x1>>8), byte(x1)); err != nil {
		return err
	}
	return t.writeCommand(cmdPASet,
		byte(y0>>8), byte(y0),
		byte(y1>>8), byte(y1))
}

// Display renders the internal image buffer to the screen.
func (t *TFT) Display() error {
	if err := t.setWindow(0, 0, t.width-1, t.height-1); err != nil {
		return err
	}

	if err := t.dc.Out(gpio.Low); err != nil {
		return err
	}
	if err := t.spiDev.Tx([]byte{cmdRAMWR}, nil); err != nil {
		return err
	}
	if err := t.dc.Out(gpio.High); err != nil {
		return err
	}

	// Convert RGBA to RGB565 and write in chunks; the SPI driver has a max
	// transfer size of 4096 bytes.
	const chunkSize = 4096
	totalBytes := t.width * t.height * 2
	buf := make([]byte, chunkSize)

	pixelIdx := 0
	for offset := 0; offset < totalBytes; offset += chunkSize {
		remaining := totalBytes - offset
		size := chunkSize
		if remaining < chunkSize {
			size = remaining
		}

		for i := 0; i < size; i += 2 {
			x := pixelIdx % t.width
			y := pixelIdx / t.width
			r, g, b, _ := t.img.At(x, y).RGBA()

			r8 := uint8(r >> 8)
			g8 := uint8(g >> 8)
			b8 := uint8(b >> 8)

			// RGB565, big-endian (MSB first)
			rgb565 := uint16((r8&0xF8)<<8) | uint16((g8&0xFC)<<3) | uint16(b8>>3)
			buf[i] = byte(rgb565 >> 8)
			buf[i+1] = byte(rgb565)
			pixelIdx++
		}

		if err := t.spiDev.Tx(buf[:size], nil); err != nil {
			return err
		}
	}

	return nil
}

// Clear fills the buffer with the specified color.
func (t *TFT) Clear(c color.Color) {
	draw.Draw(t.img, t.img.Bounds(), &image.Uniform{c}, image.Point{}, draw.Src)
}

// DrawText draws text at the specified position.
func (t *TFT) DrawText(x, y int, text string, col color.Color) {
	d := &font.Drawer{
		Dst:  t.img,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}

// DrawHLine draws a horizontal line.
func (t *TFT) DrawHLine(x0, x1, y, width int, col color.Color) {
	for i := 0; i < width; i++ {
		for x := x0; x <= x1; x++ {
			t.img.Set(x, y+i, col)
		}
	}
}

// statusColor maps a connection status to its display color.
func statusColor(s models.Status) color.Color {
	switch s {
	case models.StatusConnected:
		return color.RGBA{0, 255, 0, 255}
	case models.StatusConnecting:
		return color.RGBA{255, 255, 0, 255}
	case models.StatusApMode, models.StatusConfigPortal:
		return color.RGBA{0, 200, 255, 255}
	default:
		return color.RGBA{255, 64, 64, 255}
	}
}

// RenderScreen draws the status screen and pushes it to the panel.
func (t *TFT) RenderScreen(screen *Screen) error {
	t.Clear(color.Black)

	white := color.RGBA{255, 255, 255, 255}
	yellow := color.RGBA{255, 255, 0, 255}
	lightGray := color.RGBA{153, 153, 153, 255}

	// Character dimensions (7x13 font)
	const cw = 7
	const ch = 13

	t.DrawText(1*cw, 1*ch+2, "WiFi:", white)
	t.DrawText(7*cw, 1*ch+2, screen.Status.String(), statusColor(screen.Status))

	if screen.SSID != "" {
		t.DrawText(1*cw, 2*ch+2, "SSID: "+screen.SSID, white)
	}
	ip := screen.IP
	if ip == "" {
		ip = "-"
	}
	t.DrawText(1*cw, 3*ch+2, fmt.Sprintf("IP:   %s, %s.local", ip, screen.Hostname), white)

	online := "offline"
	if screen.Online {
		online = "online"
	}
	t.DrawText(1*cw, 4*ch+2, "Net:  "+online, white)

	t.DrawHLine(cw, t.width-2*cw, 5*ch+6, 2, lightGray)

	// Portal banner: tell the operator where to connect.
	if screen.PortalActive {
		t.DrawText(1*cw, 7*ch, "Setup network:", white)
		t.DrawText(1*cw, 8*ch, screen.APSSID, yellow)
		t.DrawText(1*cw, 9*ch, "Join it to configure WiFi", lightGray)
	}

	t.DrawText(1*cw, t.height-ch, "wifimgr "+screen.Version, lightGray)

	if err := t.Display(); err != nil {
		return err
	}
	slog.Debug("TFT display render complete")
	return nil
}
