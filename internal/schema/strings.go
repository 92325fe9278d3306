package schema

import "bytes"

// CString returns the string up to the first NUL in b.
func CString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}

// PutString copies s into dst, truncating to len(dst)-1 and NUL padding the
// remainder.
func PutString(dst []byte, s string) {
	n := copy(dst[:len(dst)-1], s)
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
}
