package ccnet

// crcPolynomial is the CCNet CRC-16 generator polynomial in reflected form.
const crcPolynomial uint16 = 0x08408

// Checksum computes the CCNet 16-bit CRC over data.
//
// Bytes are processed least-significant-bit first from a zero register
// with no final inversion. The result is transmitted little-endian as the
// last two bytes of every frame.
func Checksum(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc ^= uint16(b)
		for i := 0; i < 8; i++ {
			if crc&1 != 0 {
				crc = (crc >> 1) ^ crcPolynomial
			} else {
				crc >>= 1
			}
		}
	}

	return crc
}
