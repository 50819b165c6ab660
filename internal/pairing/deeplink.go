package pairing

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/nextlevelbuilder/botlink/pkg/protocol"
)

// VerificationLink returns the deep link the owner opens to prove ownership of b.
func VerificationLink(b protocol.Binding) string {
	return protocol.TelegramDeepLink(b.BotName, b.PassUUID)
}

// RenderQR renders link as a terminal QR code (half-block characters).
func RenderQR(link string) (string, error) {
	q, err := qrcode.New(link, qrcode.Medium)
	if err != nil {
		return "", fmt.Errorf("encode qr code: %w", err)
	}
	return q.ToSmallString(false), nil
}
