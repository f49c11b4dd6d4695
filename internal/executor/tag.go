package executor

import "hash/fnv"

const tagMask = 1<<62 - 1

// Tag derives the order tag of a configuration: FNV-1a 64-bit masked to 62 bits.
// It is deterministic across runs and never zero, since zero marks foreign positions.
func Tag(configName string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(configName))
	tag := int64(h.Sum64() & tagMask)
	if tag == 0 {
		return 1
	}
	return tag
}
