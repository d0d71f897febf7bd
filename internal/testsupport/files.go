package testsupport

// Payload returns size bytes of a repeating pattern for upload limit tests.
// A size <= 0 yields a single byte.
func Payload(size int) []byte {
	if size <= 0 {
		size = 1
	}
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = 'a' + byte(i%26)
	}
	return buf
}
