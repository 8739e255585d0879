package rtu

import "encoding/binary"

func calculateCRC(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b)
		for _i := 0; _i < 8; _i++ {
			if crc&0x0001 != 0 {
				crc = (crc >> 1) ^ 0xA001
			} else {
				crc = crc >> 1
			}
		}
	}
	return crc
}

// appendCRC appends the checksum of frame, low byte first.
func appendCRC(frame []byte) []byte {
	crc := calculateCRC(frame)
	return append(frame, byte(crc&0xFF), byte(crc>>8))
}

// checkCRC verifies the trailing two checksum bytes of frame.
func checkCRC(frame []byte) bool {
	if len(frame) < 3 {
		return false
	}
	received := binary.LittleEndian.Uint16(frame[len(frame)-2:])
	return received == calculateCRC(frame[:len(frame)-2])
}
