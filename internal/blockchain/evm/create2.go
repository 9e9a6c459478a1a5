package evm

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// EIP-1167 minimal proxy init code, split around the implementation address
var (
	cloneInitPrefix = common.FromHex("0x3d602d80600a3d3981f3363d3d373d3d3d363d73")
	cloneInitSuffix = common.FromHex("0x5af43d82803e903d91602b57fd5bf3")
)

// ComputeCreate2Address computes
// keccak256(0xff ++ deployer ++ salt ++ initCodeHash)[12:]
func ComputeCreate2Address(deployer common.Address, salt [32]byte, initCodeHash common.Hash) (common.Address, error) {
	if deployer == (common.Address{}) {
		return common.Address{}, errors.New("deployer address cannot be empty")
	}

	data := make([]byte, 1+20+32+32)
	data[0] = 0xff
	copy(data[1:21], deployer.Bytes())
	copy(data[21:53], salt[:])
	copy(data[53:85], initCodeHash.Bytes())

	return common.BytesToAddress(crypto.Keccak256(data)[12:]), nil
}

// CloneInitCodeHash returns the init code hash of a minimal proxy that
// delegates to implementation
func CloneInitCodeHash(implementation common.Address) common.Hash {
	code := make([]byte, 0, len(cloneInitPrefix)+common.AddressLength+len(cloneInitSuffix))
	code = append(code, cloneInitPrefix...)
	code = append(code, implementation.Bytes()...)
	code = append(code, cloneInitSuffix...)
	return crypto.Keccak256Hash(code)
}

// EscrowAddress predicts where an escrow factory deploys the clone of
// implementation for salt. Escrows are keyed by swap id, so the swap id is
// the usual salt.
func EscrowAddress(factory, implementation common.Address, salt [32]byte) (common.Address, error) {
	if implementation == (common.Address{}) {
		return common.Address{}, errors.New("implementation address cannot be empty")
	}
	addr, err := ComputeCreate2Address(factory, salt, CloneInitCodeHash(implementation))
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to compute escrow address: %w", err)
	}
	return addr, nil
}

// VerifyEscrowAddress reports whether addr is the escrow for salt
func VerifyEscrowAddress(addr, factory, implementation common.Address, salt [32]byte) (bool, error) {
	computed, err := EscrowAddress(factory, implementation, salt)
	if err != nil {
		return false, err
	}
	return computed == addr, nil
}
