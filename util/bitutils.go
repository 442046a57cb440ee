package util

import (
	"strconv"
	"strings"
)

func ToBinaryString(data byte) string {
	result := make([]string, 0, 8)
	for i := 0; i < 8; i++ {
		move := uint(7 - i)
		result = append(result, strconv.Itoa(int((data>>move)&1)))
	}
	return strings.Join(result, "")
}

// FormatBitmap16 renders a 16 bit flag set high bit first, e.g. the page
// feature bitmap 0x0003 -> "00000000 00000011".
func FormatBitmap16(bitmap uint16) string {
	return ToBinaryString(byte(bitmap>>8)) + " " + ToBinaryString(byte(bitmap))
}

// SetBits 返回 bitmap 中被置位的下标，从低位开始
func SetBits(bitmap uint16) []int {
	bits := make([]int, 0)
	for i := 0; i < 16; i++ {
		if bitmap&(1<<uint(i)) != 0 {
			bits = append(bits, i)
		}
	}
	return bits
}
