package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mr-tron/base58"
	"gopkg.in/yaml.v3"
)

// ErrInvalidAddress is returned for token addresses that are not base58 32-byte keys.
var ErrInvalidAddress = errors.New("invalid token address")

// tokenListFile is the token list document: `tokens: [addr, ...]`.
type tokenListFile struct {
	Tokens []string `yaml:"tokens"`
}

// LoadTokenList reads the ordered token address list.
// Order is preserved and repeated addresses are dropped.
func LoadTokenList(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read token list: %w", err)
	}

	var doc tokenListFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse token list: %w", err)
	}

	return NormalizeAddresses(doc.Tokens)
}

// NormalizeAddresses trims, validates and de-duplicates addresses in order.
func NormalizeAddresses(raw []string) ([]string, error) {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for i, addr := range raw {
		addr = strings.TrimSpace(addr)
		if err := ValidateAddress(addr); err != nil {
			return nil, fmt.Errorf("token %d: %w", i, err)
		}
		if _, ok := seen[addr]; ok {
			continue
		}
		seen[addr] = struct{}{}
		out = append(out, addr)
	}
	return out, nil
}

// ValidateAddress checks that addr decodes from base58 to a 32-byte public key.
func ValidateAddress(addr string) error {
	if addr == "" {
		return fmt.Errorf("%w: empty", ErrInvalidAddress)
	}
	decoded, err := base58.Decode(addr)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidAddress, addr, err)
	}
	if len(decoded) != 32 {
		return fmt.Errorf("%w: %s: decoded length %d", ErrInvalidAddress, addr, len(decoded))
	}
	return nil
}
