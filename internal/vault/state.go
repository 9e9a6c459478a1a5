package vault

import (
	"context"
	"fmt"
	"math/big"

	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tvm/cell"
	"go.uber.org/zap"

	"tonvault/internal/swap"
)

// Get methods exposed by the vault contract
const (
	MethodGetJettonData = "get_jetton_data"
	MethodGetVaultData  = "get_vault_data"
)

// StateReader runs a get method on a contract and returns the result stack.
// Integers are *big.Int, cells *cell.Cell, slices *cell.Slice and null is nil.
type StateReader interface {
	RunGetMethod(ctx context.Context, addr *address.Address, method string, params ...any) ([]any, error)
}

// JettonData mirrors get_jetton_data
type JettonData struct {
	TotalSupply *big.Int
	Mintable    bool
	Admin       *address.Address
	Content     *cell.Cell
	WalletCode  *cell.Cell
}

// VaultData mirrors get_vault_data
type VaultData struct {
	Stopped      bool
	JettonMaster *address.Address
	JettonWallet *address.Address
	Swaps        map[uint64]*swap.Record
}

// VaultConfig is the full contract configuration: what deployment writes and
// what ReadVaultState reconstructs
type VaultConfig struct {
	Admin        *address.Address
	Content      *cell.Cell
	WalletCode   *cell.Cell
	TotalSupply  *big.Int
	JettonMaster *address.Address
	JettonWallet *address.Address
	Stopped      bool
	Swaps        map[uint64]*swap.Record
}

// Client reads vault state through a StateReader
type Client struct {
	reader StateReader
	addr   *address.Address
	logger *zap.Logger
}

// NewClient creates a vault client for the contract at addr
func NewClient(reader StateReader, addr *address.Address, logger *zap.Logger) *Client {
	return &Client{
		reader: reader,
		addr:   addr,
		logger: logger.Named("vault"),
	}
}

// Address returns the vault address
func (c *Client) Address() *address.Address {
	return c.addr
}

// ReadJettonData calls get_jetton_data
func (c *Client) ReadJettonData(ctx context.Context) (*JettonData, error) {
	stack, err := c.reader.RunGetMethod(ctx, c.addr, MethodGetJettonData)
	if err != nil {
		return nil, fmt.Errorf("failed to run %s: %w", MethodGetJettonData, err)
	}
	if len(stack) != 5 {
		return nil, fmt.Errorf("%w: %s returned %d values, want 5", ErrProtocolMismatch, MethodGetJettonData, len(stack))
	}

	d := &JettonData{}
	if d.TotalSupply, err = stackInt(stack[0], "total_supply"); err != nil {
		return nil, err
	}
	mintable, err := stackInt(stack[1], "mintable")
	if err != nil {
		return nil, err
	}
	d.Mintable = mintable.Sign() != 0
	if d.Admin, err = stackAddr(stack[2], "admin"); err != nil {
		return nil, err
	}
	if d.Content, err = stackCell(stack[3], "content"); err != nil {
		return nil, err
	}
	if d.WalletCode, err = stackCell(stack[4], "wallet_code"); err != nil {
		return nil, err
	}
	return d, nil
}

// ReadVaultData calls get_vault_data. A null swap dictionary reads as empty.
func (c *Client) ReadVaultData(ctx context.Context) (*VaultData, error) {
	stack, err := c.reader.RunGetMethod(ctx, c.addr, MethodGetVaultData)
	if err != nil {
		return nil, fmt.Errorf("failed to run %s: %w", MethodGetVaultData, err)
	}
	if len(stack) != 4 {
		return nil, fmt.Errorf("%w: %s returned %d values, want 4", ErrProtocolMismatch, MethodGetVaultData, len(stack))
	}

	d := &VaultData{}
	stopped, err := stackInt(stack[0], "stopped")
	if err != nil {
		return nil, err
	}
	d.Stopped = stopped.Sign() != 0
	if d.JettonMaster, err = stackAddr(stack[1], "jetton_master"); err != nil {
		return nil, err
	}
	if d.JettonWallet, err = stackAddr(stack[2], "jetton_wallet"); err != nil {
		return nil, err
	}

	root, err := stackCell(stack[3], "swaps")
	if err != nil {
		return nil, err
	}
	var dict *cell.Dictionary
	if root != nil {
		dict = root.AsDict(swap.DictKeyBits)
	}
	if d.Swaps, err = swap.ReadDict(dict); err != nil {
		return nil, fmt.Errorf("%w: swaps: %v", ErrProtocolMismatch, err)
	}
	return d, nil
}

// ReadVaultState combines both get methods into one snapshot
func (c *Client) ReadVaultState(ctx context.Context) (*VaultConfig, error) {
	jetton, err := c.ReadJettonData(ctx)
	if err != nil {
		return nil, err
	}
	data, err := c.ReadVaultData(ctx)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("Vault state read",
		zap.String("vault", c.addr.String()),
		zap.Bool("stopped", data.Stopped),
		zap.Int("swaps", len(data.Swaps)))

	return &VaultConfig{
		Admin:        jetton.Admin,
		Content:      jetton.Content,
		WalletCode:   jetton.WalletCode,
		TotalSupply:  jetton.TotalSupply,
		JettonMaster: data.JettonMaster,
		JettonWallet: data.JettonWallet,
		Stopped:      data.Stopped,
		Swaps:        data.Swaps,
	}, nil
}

// ReadSwapRecord returns the record stored under queryID or ErrSwapNotFound
func (c *Client) ReadSwapRecord(ctx context.Context, queryID uint64) (*swap.Record, error) {
	data, err := c.ReadVaultData(ctx)
	if err != nil {
		return nil, err
	}
	r, ok := data.Swaps[queryID]
	if !ok {
		return nil, fmt.Errorf("%w: query id %d", ErrSwapNotFound, queryID)
	}
	return r, nil
}

// ==================== Stack decoding ====================

func stackInt(v any, field string) (*big.Int, error) {
	switch x := v.(type) {
	case *big.Int:
		if x == nil {
			break
		}
		return x, nil
	case int64:
		return big.NewInt(x), nil
	}
	return nil, fmt.Errorf("%w: %s: expected int, got %T", ErrProtocolMismatch, field, v)
}

func stackAddr(v any, field string) (*address.Address, error) {
	var s *cell.Slice
	switch x := v.(type) {
	case *cell.Slice:
		s = x
	case *cell.Cell:
		if x != nil {
			s = x.BeginParse()
		}
	}
	if s == nil {
		return nil, fmt.Errorf("%w: %s: expected address slice, got %T", ErrProtocolMismatch, field, v)
	}
	addr, err := s.LoadAddr()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrProtocolMismatch, field, err)
	}
	return addr, nil
}

// stackCell accepts a cell, a slice or null; null yields a nil cell
func stackCell(v any, field string) (*cell.Cell, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case *cell.Cell:
		return x, nil
	case *cell.Slice:
		if x == nil {
			return nil, nil
		}
		c, err := x.ToCell()
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrProtocolMismatch, field, err)
		}
		return c, nil
	}
	return nil, fmt.Errorf("%w: %s: expected cell, got %T", ErrProtocolMismatch, field, v)
}

// ==================== Storage layout ====================

// BuildInitData encodes the vault storage cell:
// ^[total_supply:Coins admin:MsgAddress ^content ^wallet_code]
// stopped:Bool jetton_master:MsgAddress jetton_wallet:MsgAddress swaps:(HashmapE 64 SwapRecord)
func BuildInitData(cfg VaultConfig) (*cell.Cell, error) {
	if cfg.Content == nil || cfg.WalletCode == nil {
		return nil, fmt.Errorf("%w: content and wallet code", ErrMissingParameter)
	}
	supply := cfg.TotalSupply
	if supply == nil {
		supply = big.NewInt(0)
	}

	jb := cell.BeginCell()
	if err := jb.StoreBigCoins(supply); err != nil {
		return nil, fmt.Errorf("failed to encode total supply: %w", err)
	}
	if err := jb.StoreAddr(cfg.Admin); err != nil {
		return nil, fmt.Errorf("failed to encode admin: %w", err)
	}
	jetton := jb.MustStoreRef(cfg.Content).MustStoreRef(cfg.WalletCode).EndCell()

	swaps, err := swap.BuildDict(cfg.Swaps)
	if err != nil {
		return nil, fmt.Errorf("failed to encode swaps: %w", err)
	}

	b := cell.BeginCell().MustStoreRef(jetton).MustStoreBoolBit(cfg.Stopped)
	if err := b.StoreAddr(cfg.JettonMaster); err != nil {
		return nil, fmt.Errorf("failed to encode jetton master: %w", err)
	}
	if err := b.StoreAddr(cfg.JettonWallet); err != nil {
		return nil, fmt.Errorf("failed to encode jetton wallet: %w", err)
	}
	if err := b.StoreDict(swaps); err != nil {
		return nil, fmt.Errorf("failed to store swaps: %w", err)
	}
	return b.EndCell(), nil
}

// ParseInitData decodes a storage cell built by BuildInitData
func ParseInitData(data *cell.Cell) (*VaultConfig, error) {
	if data == nil {
		return nil, fmt.Errorf("%w: nil data cell", ErrProtocolMismatch)
	}
	mismatch := func(field string, err error) error {
		return fmt.Errorf("%w: %s: %v", ErrProtocolMismatch, field, err)
	}

	s := data.BeginParse()
	js, err := s.LoadRef()
	if err != nil {
		return nil, mismatch("jetton_data", err)
	}

	cfg := &VaultConfig{}
	if cfg.TotalSupply, err = js.LoadBigCoins(); err != nil {
		return nil, mismatch("total_supply", err)
	}
	if cfg.Admin, err = js.LoadAddr(); err != nil {
		return nil, mismatch("admin", err)
	}
	if cfg.Content, err = js.LoadRefCell(); err != nil {
		return nil, mismatch("content", err)
	}
	if cfg.WalletCode, err = js.LoadRefCell(); err != nil {
		return nil, mismatch("wallet_code", err)
	}
	if cfg.Stopped, err = s.LoadBoolBit(); err != nil {
		return nil, mismatch("stopped", err)
	}
	if cfg.JettonMaster, err = s.LoadAddr(); err != nil {
		return nil, mismatch("jetton_master", err)
	}
	if cfg.JettonWallet, err = s.LoadAddr(); err != nil {
		return nil, mismatch("jetton_wallet", err)
	}
	dict, err := s.LoadDict(swap.DictKeyBits)
	if err != nil {
		return nil, mismatch("swaps", err)
	}
	if cfg.Swaps, err = swap.ReadDict(dict); err != nil {
		return nil, mismatch("swaps", err)
	}
	return cfg, nil
}
