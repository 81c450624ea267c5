package sheet

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/ideageek/examiner/internal/model"
)

const qrSize = 256

// EncodeQR renders the payload as JSON, then as a PNG QR code. It returns the
// JSON text and the base64 PNG.
func EncodeQR(p model.QRPayload) (text, pngBase64 string, err error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", "", fmt.Errorf("marshal qr payload: %w", err)
	}
	// High is error correction level Q.
	png, err := qrcode.Encode(string(b), qrcode.High, qrSize)
	if err != nil {
		return "", "", fmt.Errorf("encode qr: %w", err)
	}
	return string(b), base64.StdEncoding.EncodeToString(png), nil
}
