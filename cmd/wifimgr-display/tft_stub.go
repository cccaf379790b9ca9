//go:build !linux

package main

import "fmt"

// TFT is only available on linux; other platforms run log-only.
type TFT struct{}

func NewTFT() (*TFT, error) {
	return nil, fmt.Errorf("tft: not supported on this platform")
}

func (t *TFT) RenderScreen(screen *Screen) error {
	return fmt.Errorf("tft: not supported on this platform")
}
