// Package proof renders the shareable artifacts for a committed wager: the
// canonical share URL and a scannable QR image encoding it. The wager id is
// embedded in the URL verbatim, so a counterparty can verify the wager by id
// without decoding anything.
package proof

import (
	"context"
	"fmt"
	"strings"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/phenomenon0/daredevil-core/pkg/store"
)

// qrSize is the rendered image edge in pixels.
const qrSize = 256

// Generator derives share artifacts from wager ids.
type Generator struct {
	baseURL string
}

// NewGenerator builds a generator rooted at the public share host.
func NewGenerator(baseURL string) *Generator {
	return &Generator{baseURL: strings.TrimRight(baseURL, "/")}
}

// ShareURL returns the canonical link for a wager. Plain concatenation keeps
// the ledger-assigned id verbatim in the URL.
func (g *Generator) ShareURL(wagerID string) string {
	return g.baseURL + "/wager/" + wagerID
}

// QRCode renders a PNG encoding the wager's share URL.
func (g *Generator) QRCode(wagerID string) ([]byte, error) {
	png, err := qrcode.Encode(g.ShareURL(wagerID), qrcode.Medium, qrSize)
	if err != nil {
		return nil, fmt.Errorf("proof: render qr for %s: %w", wagerID, err)
	}
	return png, nil
}

// Publish renders the QR image and stores it next to the wager's metadata,
// returning the share URL and the stored image's URI.
func (g *Generator) Publish(ctx context.Context, blobs store.BlobStore, wagerID string) (shareURL, qrURI string, err error) {
	png, err := g.QRCode(wagerID)
	if err != nil {
		return "", "", err
	}
	uri, err := blobs.UploadBytes(ctx, wagerID+"/qr.png", png, "image/png")
	if err != nil {
		return "", "", fmt.Errorf("proof: store qr for %s: %w", wagerID, err)
	}
	return g.ShareURL(wagerID), uri, nil
}
