package utils

import "bytes"

// EncodeASCII encodes s one byte per character. Characters outside 7-bit
// ASCII become '?'.
func EncodeASCII(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if r > 0x7f {
			out = append(out, '?')
			continue
		}

		out = append(out, byte(r))
	}

	return out
}

// FirstLine returns the bytes before the first '\n' with one trailing '\r'
// removed. Without a newline the whole input is returned.
func FirstLine(b []byte) []byte {
	if i := bytes.IndexByte(b, '\n'); i >= 0 {
		b = b[:i]
	}

	return bytes.TrimSuffix(b, []byte{'\r'})
}
