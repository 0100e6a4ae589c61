package adb

// Checksum returns the value carried in a header's DataCrc32 field: the
// sum of all payload bytes modulo 2^32. Despite the field name this is not
// a CRC, and peers compare against exactly this sum.
func Checksum(b []byte) uint32 {
	var sum uint32
	for _, c := range b {
		sum += uint32(c)
	}
	return sum
}
