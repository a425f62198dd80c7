package utils

// BytesToOffset turns a big-endian byte slice (a PUSH immediate, per spec
// §4.3's backward-scan target resolution) into a non-negative int offset.
// Push data wider than 8 bytes cannot address any real bytecode offset, so
// it is reported as not-representable rather than silently truncated.
func BytesToOffset(b []byte) (offset int, ok bool) {
	if len(b) == 0 || len(b) > 8 {
		return 0, false
	}
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	if v > 1<<31 {
		return 0, false
	}
	return int(v), true
}
