package utils

import (
	"fmt"
	"hash/fnv"
	"strings"
)

func HashStringToUint64(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}

// DedupKey builds the idempotency key stored on alerts: the category followed
// by a hash of the parts that identify one violation instance.
func DedupKey(category string, parts ...string) string {
	return fmt.Sprintf("%s:%016x", category, HashStringToUint64(strings.Join(parts, "\x1f")))
}
