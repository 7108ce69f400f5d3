package shared

import (
	"os"
	"strings"
)

const EnvMockProvider = "MOCK_WALLET_PROVIDER"

// IsMockProviderMode checks if the in-memory wallet provider is forced via environment variable
func IsMockProviderMode() bool {
	mode := strings.ToLower(os.Getenv(EnvMockProvider))
	return mode == "true" || mode == "1"
}

// NormalizeAddress returns the canonical, case-insensitive key of a wallet address.
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// SameAddress compares two addresses ignoring case and surrounding whitespace.
func SameAddress(a, b string) bool {
	return NormalizeAddress(a) == NormalizeAddress(b)
}

// ShortAddress formats an address for log lines and user messages, e.g. 0x1234...abcd.
func ShortAddress(address string) string {
	if len(address) <= 10 {
		return address
	}
	return address[:6] + "..." + address[len(address)-4:]
}
