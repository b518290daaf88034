// Package erc20 encodes and decodes the two token calls the payment flow needs,
// balanceOf(address) and transfer(address,uint256), without an ABI codec.
// The same layout serves TRC20 once the TRON 0x41 address prefix is dropped.
package erc20

import (
	"encoding/hex"
	"math/big"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

const (
	BalanceOfSelector = "70a08231" // balanceOf(address)
	TransferSelector  = "a9059cbb" // transfer(address,uint256)

	WordSize    = 32
	AddressSize = 20
)

var (
	ErrEmptyResult   = errors.New("erc20: empty call result")
	ErrInvalidResult = errors.New("erc20: invalid call result")
	ErrBadAddress    = errors.New("erc20: address must be 20 bytes")
	ErrBadAmount     = errors.New("erc20: amount must be positive and fit in uint256")
)

var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// PadWord left-pads b to a 32 byte word.
func PadWord(b []byte) []byte {
	return common.LeftPadBytes(b, WordSize)
}

// EncodeBalanceOf returns 0x-prefixed call data for balanceOf(holder).
func EncodeBalanceOf(holder []byte) (string, error) {
	if len(holder) != AddressSize {
		return "", ErrBadAddress
	}
	return "0x" + BalanceOfSelector + hex.EncodeToString(PadWord(holder)), nil
}

// EncodeTransfer returns 0x-prefixed call data for transfer(to, amount).
// amount is in the token's smallest unit.
func EncodeTransfer(to []byte, amount *big.Int) (string, error) {
	if len(to) != AddressSize {
		return "", ErrBadAddress
	}
	if amount == nil || amount.Sign() <= 0 || amount.Cmp(maxUint256) > 0 {
		return "", ErrBadAmount
	}

	var sb strings.Builder
	sb.Grow(2 + 8 + 4*WordSize)
	sb.WriteString("0x")
	sb.WriteString(TransferSelector)
	sb.WriteString(hex.EncodeToString(PadWord(to)))
	sb.WriteString(hex.EncodeToString(PadWord(amount.Bytes())))
	return sb.String(), nil
}

// DecodeUint256 parses the hex result of a uint256-returning call.
// "0x" and "" are reported as ErrEmptyResult, which is not the same as a zero balance.
func DecodeUint256(result string) (*big.Int, error) {
	s := strings.TrimSpace(result)
	if s == "" || s == "0x" || s == "0X" {
		return nil, ErrEmptyResult
	}
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}

	b, err := hexutil.Decode(s)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidResult, "%q: %v", result, err)
	}
	if len(b) > WordSize {
		b = b[:WordSize]
	}
	return new(big.Int).SetBytes(b), nil
}
