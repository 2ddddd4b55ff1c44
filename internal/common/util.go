package common

// IsPrintable reports whether b is a printable ASCII byte (space through tilde).
func IsPrintable(b byte) bool {
	return b >= MinPrintable && b <= MaxPrintable
}

// Sanitize replaces every non-printable byte of s with '?'.
func Sanitize(s string) string {
	buf := []byte(s)
	for i, b := range buf {
		if !IsPrintable(b) {
			buf[i] = '?'
		}
	}
	return string(buf)
}
