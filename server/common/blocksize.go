package common

import (
	"fmt"
)

// Block size limits. The default matches the InnoDB 16 KiB page.
const (
	DefaultBlockSize = 16384
	MinBlockSize     = 1024
	MaxBlockSize     = 32 * 1024
)

// The reserved trailer is allocated in chunks of ReservedChunkSize bytes.
const (
	ReservedChunkBits   = 3
	ReservedChunkSize   = 1 << ReservedChunkBits
	MaxReservedPageSize = 256
)

// line pointer / tuple header sizes used by the tuple sizing helpers
const (
	ItemIDSize          = 4
	HeapTupleHeaderSize = 24
	MaxAlign            = 8
)

// BlockSize is the per-process geometry, computed once after the cluster
// settings are known and read-only afterwards.
type BlockSize struct {
	PageSize     int
	ReservedSize int
	Bits         uint
}

// IsValidBlockSize 是否是 1K..32K 之间的 2 的幂
func IsValidBlockSize(size int) bool {
	return size >= MinBlockSize && size <= MaxBlockSize && size&(size-1) == 0
}

// IsValidReservedSize 预留区大小是否合法
func IsValidReservedSize(size int) bool {
	return size >= 0 && size <= MaxReservedPageSize
}

// RoundReservedSize rounds up to the next chunk multiple.
func RoundReservedSize(size int) int {
	return (size + ReservedChunkSize - 1) &^ (ReservedChunkSize - 1)
}

// NewBlockSize validates the raw sizes and rounds the reserved size up to a
// whole number of chunks.
func NewBlockSize(pageSize, reserved int) (*BlockSize, error) {
	if !IsValidBlockSize(pageSize) {
		return nil, fmt.Errorf("invalid block size %d: must be a power of two between %d and %d", pageSize, MinBlockSize, MaxBlockSize)
	}
	if !IsValidReservedSize(reserved) {
		return nil, fmt.Errorf("invalid reserved page size %d: must be between 0 and %d", reserved, MaxReservedPageSize)
	}

	var bits uint
	for s := pageSize; s > 1; s >>= 1 {
		bits++
	}

	return &BlockSize{
		PageSize:     pageSize,
		ReservedSize: RoundReservedSize(reserved),
		Bits:         bits,
	}, nil
}

// UsableSize is the number of bytes between the header and the trailer.
func (bs *BlockSize) UsableSize() int {
	return bs.PageSize - PageHeaderSize - bs.ReservedSize
}

// MaxHeapTupleSize 单页可存放的最大元组大小
func (bs *BlockSize) MaxHeapTupleSize() int {
	return bs.PageSize - maxAlign(PageHeaderSize+bs.ReservedSize+ItemIDSize)
}

// MaxHeapTuplesPerPage 单页最多元组数
func (bs *BlockSize) MaxHeapTuplesPerPage() int {
	return (bs.PageSize - PageHeaderSize - bs.ReservedSize) / (maxAlign(HeapTupleHeaderSize) + ItemIDSize)
}

func maxAlign(n int) int {
	return (n + MaxAlign - 1) &^ (MaxAlign - 1)
}
