package listener

import (
	"context"
	"fmt"

	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tlb"
)

// LiteAPI is the subset of the lite client LiteSource needs
type LiteAPI interface {
	LastTransaction(ctx context.Context, addr *address.Address) (uint64, []byte, error)
	ListTransactions(ctx context.Context, addr *address.Address, limit uint32, lt uint64, hash []byte) ([]*tlb.Transaction, error)
}

// LiteSource walks the vault history through a lite client
type LiteSource struct {
	api  LiteAPI
	addr *address.Address
}

// NewLiteSource creates a source for the account at addr
func NewLiteSource(api LiteAPI, addr *address.Address) *LiteSource {
	return &LiteSource{api: api, addr: addr}
}

// LatestLT implements TransactionSource
func (s *LiteSource) LatestLT(ctx context.Context) (uint64, error) {
	lt, _, err := s.api.LastTransaction(ctx, s.addr)
	return lt, err
}

// TransactionsAfter implements TransactionSource. Pages are fetched from the
// newest transaction backwards until one at or below lt is reached.
func (s *LiteSource) TransactionsAfter(ctx context.Context, after uint64, pageSize int) ([]Transaction, error) {
	lt, hash, err := s.api.LastTransaction(ctx, s.addr)
	if err != nil {
		return nil, err
	}

	var newestFirst []Transaction
	for lt > after {
		page, err := s.api.ListTransactions(ctx, s.addr, uint32(pageSize), lt, hash)
		if err != nil {
			return nil, fmt.Errorf("failed to list transactions at lt %d: %w", lt, err)
		}
		if len(page) == 0 {
			break
		}

		reached := false
		for i := len(page) - 1; i >= 0; i-- {
			if page[i].LT <= after {
				reached = true
				break
			}
			newestFirst = append(newestFirst, convert(page[i]))
		}
		if reached {
			break
		}
		lt, hash = page[0].PrevTxLT, page[0].PrevTxHash
	}

	out := make([]Transaction, len(newestFirst))
	for i, tx := range newestFirst {
		out[len(out)-1-i] = tx
	}
	return out, nil
}

func convert(tx *tlb.Transaction) Transaction {
	out := Transaction{
		Hash: tx.Hash,
		LT:   tx.LT,
		Now:  tx.Now,
	}
	if tx.IO.In != nil && tx.IO.In.MsgType == tlb.MsgTypeInternal {
		if msg := tx.IO.In.AsInternal(); msg != nil {
			out.Body = msg.Body
		}
	}
	return out
}
