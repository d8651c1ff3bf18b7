// Package qris renders QRIS payload strings as PNG images.
package qris

import (
	"encoding/base64"
	"errors"

	qrcode "github.com/skip2/go-qrcode"
)

const imageSize = 256

var ErrEmptyPayload = errors.New("qris: empty payload")

// PNG encodes payload as a QR code PNG.
func PNG(payload string) ([]byte, error) {
	if payload == "" {
		return nil, ErrEmptyPayload
	}
	return qrcode.Encode(payload, qrcode.Medium, imageSize)
}

// PNGBase64 is PNG encoded with standard base64, ready for a data: URI.
func PNGBase64(payload string) (string, error) {
	png, err := PNG(payload)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(png), nil
}
