package service

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/skip2/go-qrcode"

	"mibarrio-backend/internal/logger"
	"mibarrio-backend/internal/storage"
)

const certificateQRSize = 256

// CertificateIssuer renders the verification QR of an approved certificate request and stores it
type CertificateIssuer struct {
	storage       storage.StorageInterface
	portalBaseURL string
}

func NewCertificateIssuer(store storage.StorageInterface, portalBaseURL string) *CertificateIssuer {
	return &CertificateIssuer{storage: store, portalBaseURL: strings.TrimRight(portalBaseURL, "/")}
}

// VerificationURL is the portal page the QR points to
func (c *CertificateIssuer) VerificationURL(requestID string) string {
	return fmt.Sprintf("%s/certificados/%s", c.portalBaseURL, requestID)
}

func CertificateKey(requestID string) string {
	return "certificates/" + requestID + ".png"
}

// Issue stores the QR image and returns its URL
func (c *CertificateIssuer) Issue(ctx context.Context, requestID string) (string, error) {
	png, err := qrcode.Encode(c.VerificationURL(requestID), qrcode.Medium, certificateQRSize)
	if err != nil {
		return "", WrapError(err, "render certificate QR")
	}
	url, err := c.storage.SaveFile(ctx, CertificateKey(requestID), "image/png", bytes.NewReader(png))
	if err != nil {
		return "", WrapError(err, "store certificate QR")
	}
	logger.Info("Certificate issued", "requestID", requestID, "url", url)
	return url, nil
}
