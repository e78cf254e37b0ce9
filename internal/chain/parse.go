package chain

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ParseAddress validates a hex address.
func ParseAddress(input string) (common.Address, error) {
	input = strings.TrimSpace(input)
	if !common.IsHexAddress(input) {
		return common.Address{}, fmt.Errorf("invalid address %q", input)
	}
	return common.HexToAddress(input), nil
}

// ParseAddresses validates every input, dropping blanks and duplicates while
// keeping the original order. All invalid entries are reported together.
func ParseAddresses(inputs []string) ([]common.Address, error) {
	var (
		out     []common.Address
		invalid []string
	)
	seen := make(map[common.Address]bool, len(inputs))
	for _, input := range inputs {
		if strings.TrimSpace(input) == "" {
			continue
		}
		addr, err := ParseAddress(input)
		if err != nil {
			invalid = append(invalid, strings.TrimSpace(input))
			continue
		}
		if seen[addr] {
			continue
		}
		seen[addr] = true
		out = append(out, addr)
	}
	if len(invalid) > 0 {
		return nil, fmt.Errorf("invalid addresses: %s", strings.Join(invalid, ", "))
	}
	return out, nil
}
