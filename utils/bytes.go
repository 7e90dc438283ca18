// Package utils holds small byte and text helpers shared by the client and
// the echo peer.
package utils

// JoinBytes concatenates the given slices into one newly allocated slice.
// It returns an empty, non-nil slice when there is nothing to join.
func JoinBytes(s ...[]byte) []byte {
	n := 0
	for _, v := range s {
		n += len(v)
	}

	b, i := make([]byte, n), 0
	for _, v := range s {
		i += copy(b[i:], v)
	}

	return b
}

// SplitBytes cuts b into consecutive slices of at most size bytes. The
// returned slices alias b. A size below 1 yields b as a single chunk.
func SplitBytes(b []byte, size int) [][]byte {
	if size < 1 || len(b) <= size {
		return [][]byte{b}
	}

	chunks := make([][]byte, 0, (len(b)+size-1)/size)
	for len(b) > size {
		chunks = append(chunks, b[:size])
		b = b[size:]
	}

	return append(chunks, b)
}
