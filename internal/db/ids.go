package db

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"gatehouse/internal/constants"
)

// GenerateID returns "<prefix>_<hex>" with constants.IDRandomBytes of entropy.
// Ids are opaque to clients and stable for the life of the row.
func GenerateID(prefix string) (string, error) {
	var raw [constants.IDRandomBytes]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", fmt.Errorf("generating %s id: %w", prefix, err)
	}

	buf := make([]byte, 0, len(prefix)+1+hex.EncodedLen(len(raw)))
	buf = append(buf, prefix...)
	buf = append(buf, '_')
	buf = hex.AppendEncode(buf, raw[:])
	return string(buf), nil
}
