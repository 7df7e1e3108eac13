// Package checksum computes the CRC16 that terminates every P1 telegram.
//
// The algorithm is CRC-16/ARC: reflected polynomial 0xA001, initial value 0,
// no final xor. Charge controllers reject any frame whose checksum differs
// from the one they compute, so the output must match bit for bit.
package checksum

import (
	"fmt"
	"strings"

	"github.com/sigurn/crc16"
)

// Built once, shared by every caller.
var table = crc16.MakeTable(crc16.CRC16_ARC)

// Sum returns the CRC16 of data.
func Sum(data []byte) uint16 {
	return crc16.Checksum(data, table)
}

// Hex returns the checksum of data as 4 uppercase, zero padded hex digits.
func Hex(data []byte) string {
	return fmt.Sprintf("%04X", Sum(data))
}

// Valid reports whether frame carries a correct checksum.
// The checksum covers everything up to and including the '!' and is
// followed by 4 hex digits. Frames without a checksum are not valid.
func Valid(frame string) bool {
	idx := strings.LastIndexByte(frame, '!')
	if idx < 0 || len(frame) < idx+5 {
		return false
	}

	given := frame[idx+1 : idx+5]
	return strings.EqualFold(given, Hex([]byte(frame[:idx+1])))
}
