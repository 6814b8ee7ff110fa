package models

// HashHexLength is the length of a hex-encoded 32-byte hash.
const HashHexLength = 64

// IsContentHash reports whether value is a lowercase hex sha256 digest.
func IsContentHash(value string) bool {
	return isLowerHex(value, HashHexLength)
}

// IsTransactionHash reports whether value looks like a transaction hash.
func IsTransactionHash(value string) bool {
	return isLowerHex(value, HashHexLength)
}

func isLowerHex(value string, length int) bool {
	if len(value) != length {
		return false
	}
	for i := 0; i < len(value); i++ {
		c := value[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
