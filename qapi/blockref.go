package qapi

import (
	"fmt"
	"strconv"
	"strings"
)

// resolveBlockRef classifies a caller-supplied block reference as either
// an already-resolved 32-byte hash or a block number to be resolved via
// chain_getBlockHash. A decimal number is normalized to "0x"-prefixed hex.
func resolveBlockRef(ref string) (hash string, numberHex string, isHash bool) {
	ref = strings.TrimSpace(strings.ToLower(ref))

	if strings.HasPrefix(ref, "0x") && len(ref) == 66 {
		return ref, "", true
	}

	if strings.HasPrefix(ref, "0x") {
		return "", ref, false
	}

	n, err := strconv.ParseUint(ref, 10, 64)
	if err != nil {
		return "", ref, false
	}
	return "", fmt.Sprintf("0x%x", n), false
}
