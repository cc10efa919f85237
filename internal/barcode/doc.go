// Package barcode wraps a reference QR decoder behind a small interface.
//
// The core pipeline never calls it. Drivers use it as an optional fallback
// when the core decoder fails, and tests use it to cross-check fixtures.
package barcode
