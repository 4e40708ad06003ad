package txip

import (
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// txHashPattern matches a 0x-prefixed 32-byte hash. go-ethereum's
// common package has no standalone syntactic checker for hashes the
// way it does for addresses (common.HexToHash silently truncates or
// left-pads instead of rejecting the wrong length), so the length
// check is enforced here directly.
var txHashPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)

// IsValidAddress reports whether s is a well-formed 0x-prefixed
// 20-byte address (spec.md §4.3's address syntax check), delegating to
// go-ethereum's own address-syntax checker and additionally requiring
// the 0x prefix it treats as optional.
func IsValidAddress(s string) bool {
	return strings.HasPrefix(s, "0x") && common.IsHexAddress(s)
}

// IsValidTxHash reports whether s is a well-formed 0x-prefixed 32-byte
// transaction hash.
func IsValidTxHash(s string) bool {
	return txHashPattern.MatchString(s)
}
