package domain

import (
	"context"
	"io"
)

//go:generate mockgen -destination=mock/voucher_store.go -package=mock . VoucherStore

// VoucherStore persists uploaded payment vouchers and returns the public path
// they are served under.
type VoucherStore interface {
	Save(ctx context.Context, filename string, content io.Reader) (string, error)
	Remove(ctx context.Context, path string) error
}

// VoucherUpload is a file received with a payment request.
type VoucherUpload struct {
	Filename string
	Size     int64
	Content  io.Reader
}
