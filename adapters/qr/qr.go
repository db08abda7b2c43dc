// Package qr renders payment QR codes for tip stickers.
package qr

import (
	"encoding/base64"
	"fmt"
	"image/color"

	"github.com/ethereum/go-ethereum/common"
	"github.com/layer-3/basetips/core"
	"github.com/layer-3/basetips/ports"
	"github.com/skip2/go-qrcode"
)

const (
	DefaultSize = 360
	MinSize     = 128
	MaxSize     = 1024
)

// Foreground is a softer black than #000 that still scans reliably
var Foreground = color.RGBA{R: 0x1f, G: 0x29, B: 0x37, A: 0xff}

// Encoder implements ports.QREncoder
type Encoder struct {
	level qrcode.RecoveryLevel
}

var _ ports.QREncoder = &Encoder{}

// NewEncoder uses the highest error correction so stickers survive wear
func NewEncoder() *Encoder {
	return &Encoder{level: qrcode.Highest}
}

// PaymentURI is the content encoded in a sticker
func PaymentURI(address string) (string, error) {
	if !common.IsHexAddress(address) {
		return "", fmt.Errorf("%w: %q", core.ErrInvalidAddress, address)
	}
	return "ethereum:" + common.HexToAddress(address).Hex(), nil
}

// PNG renders the payment QR for address as a square PNG
func (e *Encoder) PNG(address string, size int) ([]byte, error) {
	uri, err := PaymentURI(address)
	if err != nil {
		return nil, err
	}

	code, err := qrcode.New(uri, e.level)
	if err != nil {
		return nil, fmt.Errorf("failed to encode qr: %w", err)
	}
	code.ForegroundColor = Foreground
	code.BackgroundColor = color.White

	png, err := code.PNG(ClampSize(size))
	if err != nil {
		return nil, fmt.Errorf("failed to render qr: %w", err)
	}
	return png, nil
}

// DataURL renders the QR as a base64 PNG data URL
func (e *Encoder) DataURL(address string, size int) (string, error) {
	png, err := e.PNG(address, size)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

// ClampSize bounds a requested image size
func ClampSize(size int) int {
	switch {
	case size <= 0:
		return DefaultSize
	case size < MinSize:
		return MinSize
	case size > MaxSize:
		return MaxSize
	}
	return size
}
