package util

// Cursor-style little endian readers: each returns the advanced cursor and
// the decoded value.

func ReadBytes(buff []byte, cursor int, length int) (int, []byte) {
	if length <= 0 {
		return cursor, nil
	}
	return cursor + length, buff[cursor : cursor+length]
}

func ReadUB2(buff []byte, cursor int) (int, uint16) {
	i := uint16(buff[cursor])
	i |= uint16(buff[cursor+1]) << 8
	return cursor + 2, i
}

func ReadUB4(buff []byte, cursor int) (int, uint32) {
	i := uint32(buff[cursor])
	i |= uint32(buff[cursor+1]) << 8
	i |= uint32(buff[cursor+2]) << 16
	i |= uint32(buff[cursor+3]) << 24
	return cursor + 4, i
}

func ReadUB8(buff []byte, cursor int) (int, uint64) {
	i := uint64(buff[cursor])
	i |= uint64(buff[cursor+1]) << 8
	i |= uint64(buff[cursor+2]) << 16
	i |= uint64(buff[cursor+3]) << 24
	i |= uint64(buff[cursor+4]) << 32
	i |= uint64(buff[cursor+5]) << 40
	i |= uint64(buff[cursor+6]) << 48
	i |= uint64(buff[cursor+7]) << 56
	return cursor + 8, i
}

// ReadUB2At 不移动游标，直接读偏移处的 uint16
func ReadUB2At(buff []byte, offset int) uint16 {
	_, v := ReadUB2(buff, offset)
	return v
}

func ReadUB4At(buff []byte, offset int) uint32 {
	_, v := ReadUB4(buff, offset)
	return v
}

func ReadUB8At(buff []byte, offset int) uint64 {
	_, v := ReadUB8(buff, offset)
	return v
}
