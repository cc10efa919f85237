package pipeline

import (
	"context"
	"errors"

	"github.com/MeKo-Tech/qrscan/internal/barcode"
	"github.com/MeKo-Tech/qrscan/internal/decoder"
	"github.com/MeKo-Tech/qrscan/internal/locator"
	"github.com/MeKo-Tech/qrscan/internal/rectify"
	"github.com/MeKo-Tech/qrscan/internal/sprite"
	"github.com/MeKo-Tech/qrscan/internal/symbol"
	"github.com/MeKo-Tech/qrscan/internal/utils"
)

// Error kinds reported by ErrorKind.
const (
	KindNoQRCodeFound           = "no_qr_code_found"
	KindUnsupportedVersion      = "unsupported_version"
	KindNoMaskID                = "no_mask_id"
	KindUnsupportedEncodingMode = "unsupported_encoding_mode"
	KindMalformedBitstream      = "malformed_bitstream"
	KindInvalidImage            = "invalid_image"
	KindCanceled                = "canceled"
	KindInternal                = "internal"
)

// ErrorKind maps a scan error to a stable, machine readable kind.
func ErrorKind(err error) string {
	var ipe *utils.ImageProcessingError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, locator.ErrNoQRCodeFound),
		errors.Is(err, rectify.ErrEmptyCrop),
		errors.Is(err, barcode.ErrNotFound):
		return KindNoQRCodeFound
	case errors.Is(err, symbol.ErrUnsupportedVersion):
		return KindUnsupportedVersion
	case errors.Is(err, symbol.ErrNoMaskID):
		return KindNoMaskID
	case errors.Is(err, decoder.ErrUnsupportedEncodingMode):
		return KindUnsupportedEncodingMode
	case errors.Is(err, decoder.ErrMalformedBitstream):
		return KindMalformedBitstream
	case errors.Is(err, sprite.ErrInvalidImage), errors.As(err, &ipe):
		return KindInvalidImage
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	default:
		return KindInternal
	}
}

// Recoverable reports whether err means the image simply holds no readable
// symbol, as opposed to a damaged or unsupported one.
func Recoverable(err error) bool {
	return ErrorKind(err) == KindNoQRCodeFound
}

func newScanError(err error) *ScanError {
	if err == nil {
		return nil
	}
	return &ScanError{Kind: ErrorKind(err), Message: err.Error()}
}
