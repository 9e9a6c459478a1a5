package vault

import (
	"context"
	"fmt"

	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/ton"
)

// LiteReader runs get methods against the latest masterchain block through a
// lite client connection
type LiteReader struct {
	api ton.APIClientWrapped
}

// NewLiteReader wraps an API client
func NewLiteReader(api ton.APIClientWrapped) *LiteReader {
	return &LiteReader{api: api}
}

// RunGetMethod implements StateReader
func (r *LiteReader) RunGetMethod(ctx context.Context, addr *address.Address, method string, params ...any) ([]any, error) {
	block, err := r.api.CurrentMasterchainInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get masterchain info: %w", err)
	}

	res, err := r.api.RunGetMethod(ctx, block, addr, method, params...)
	if err != nil {
		return nil, fmt.Errorf("failed to run get method %s: %w", method, err)
	}
	return res.AsTuple(), nil
}
