package backend

import "encoding/binary"

func uint64ToBytes(ui uint64) []byte {
	ret := make([]byte, 8, 8)
	binary.BigEndian.PutUint64(ret, ui)
	return ret
}

func bytes2Uint64(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}
