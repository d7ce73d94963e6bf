package parser

import (
	"math/big"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// EtherDecimals is the number of decimals between ETH and wei
const EtherDecimals = 18

// ErrInvalidAmount is returned for malformed, non-positive or over-precise amounts
var ErrInvalidAmount = errors.New("invalid amount")

// Accepts "1", "0.5", ".25", "1.5 ETH", "2eth"
var amountPattern = regexp.MustCompile(`^(\d*\.?\d+|\d+\.)\s*(?:ETH)?$`)

// ParseEther converts a decimal ETH quantity into wei.
// Examples:
//   - "0.1"     -> 100000000000000000
//   - "1.5 ETH" -> 1500000000000000000
//   - "0", "-1", "abc", "1e3" are rejected
func ParseEther(amount string) (*big.Int, error) {
	normalized := strings.TrimSpace(strings.ToUpper(amount))

	matches := amountPattern.FindStringSubmatch(normalized)
	if matches == nil {
		return nil, errors.Wrapf(ErrInvalidAmount, "%q is not a decimal ETH amount", amount)
	}

	value, err := decimal.NewFromString(matches[1])
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidAmount, "%q: %v", amount, err)
	}

	if !value.IsPositive() {
		return nil, errors.Wrapf(ErrInvalidAmount, "%q must be greater than 0", amount)
	}

	wei := value.Shift(EtherDecimals)
	if !wei.Equal(wei.Truncate(0)) {
		return nil, errors.Wrapf(ErrInvalidAmount, "%q has more than %d decimals", amount, EtherDecimals)
	}

	result := wei.BigInt()
	if result.BitLen() > 256 {
		return nil, errors.Wrapf(ErrInvalidAmount, "%q does not fit in uint256 wei", amount)
	}
	return result, nil
}

// FormatEther renders wei as a decimal ETH string without trailing zeros
func FormatEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	return decimal.NewFromBigInt(wei, -EtherDecimals).String()
}

// NormalizeAmount returns the canonical decimal form of a valid amount ("1.50 eth" -> "1.5")
func NormalizeAmount(amount string) (string, error) {
	wei, err := ParseEther(amount)
	if err != nil {
		return "", err
	}
	return FormatEther(wei), nil
}
