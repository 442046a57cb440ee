// Package pages implements the on-disk page layout: the plaintext header
// and the feature slots of the reserved trailer.
package pages

import (
	"errors"

	"github.com/zhukovaskychina/xmysql-tde/server/common"
	"github.com/zhukovaskychina/xmysql-tde/server/innodb/pagefeat"
	"github.com/zhukovaskychina/xmysql-tde/util"
)

// ChecksumSize is the part of the extended_checksums slot holding the hash.
const ChecksumSize = 8

// Common errors
var (
	ErrInvalidPageSize = errors.New("invalid page size")
	ErrInvalidChecksum = errors.New("invalid page checksum")
	ErrFeatureMismatch = errors.New("page feature bitmap doesn't match cluster")
	ErrNoChecksumSlot  = errors.New("extended_checksums feature not enabled")
)

// Page is a raw page buffer. The header is little endian and never
// encrypted.
type Page []byte

// NewPage allocates a zeroed page of pageSize bytes with the current layout
// version.
func NewPage(pageSize int) Page {
	p := make(Page, pageSize)
	p.SetVersion(common.PageLayoutVersion)
	return p
}

// LSN returns the LSN of the last change written to the page
func (p Page) LSN() uint64 { return util.ReadUB8At(p, common.PageLSNOffset) }

// SetLSN writes the page LSN
func (p Page) SetLSN(lsn uint64) { util.PutUB8(p, common.PageLSNOffset, lsn) }

// SpaceID returns the tablespace identifier
func (p Page) SpaceID() uint32 { return util.ReadUB4At(p, common.PageSpaceIDOffset) }

// SetSpaceID writes the tablespace identifier
func (p Page) SetSpaceID(id uint32) { util.PutUB4(p, common.PageSpaceIDOffset, id) }

// PageNo returns the page number
func (p Page) PageNo() uint32 { return util.ReadUB4At(p, common.PagePageNoOffset) }

// SetPageNo writes the page number
func (p Page) SetPageNo(no uint32) { util.PutUB4(p, common.PagePageNoOffset, no) }

func (p Page) Type() common.PageType {
	return common.PageType(util.ReadUB2At(p, common.PageTypeOffset))
}

func (p Page) SetType(t common.PageType) { util.PutUB2(p, common.PageTypeOffset, uint16(t)) }

func (p Page) Flags() common.PageFlag {
	return common.PageFlag(util.ReadUB2At(p, common.PageFlagsOffset))
}

func (p Page) SetFlags(f common.PageFlag) { util.PutUB2(p, common.PageFlagsOffset, uint16(f)) }

// HasFlag 判断页头标志位
func (p Page) HasFlag(f common.PageFlag) bool { return p.Flags()&f != 0 }

// Features returns the feature bitmap the page was written with.
func (p Page) Features() uint16 { return util.ReadUB2At(p, common.PageFeaturesOffset) }

func (p Page) SetFeatures(bitmap uint16) { util.PutUB2(p, common.PageFeaturesOffset, bitmap) }

func (p Page) Version() uint16 { return util.ReadUB2At(p, common.PageVersionOffset) }

func (p Page) SetVersion(v uint16) { util.PutUB2(p, common.PageVersionOffset, v) }

// Prev returns the previous page number
func (p Page) Prev() uint32 { return util.ReadUB4At(p, common.PagePrevOffset) }

func (p Page) SetPrev(no uint32) { util.PutUB4(p, common.PagePrevOffset, no) }

// Next returns the next page number
func (p Page) Next() uint32 { return util.ReadUB4At(p, common.PageNextOffset) }

func (p Page) SetNext(no uint32) { util.PutUB4(p, common.PageNextOffset, no) }

// Body is the region between the header and the reserved trailer.
func (p Page) Body(pfs *pagefeat.PageFeatureSet) []byte {
	return p[common.PageHeaderSize : len(p)-pfs.BytesUsed()]
}

// IsNew reports whether the page has never been written: every byte,
// trailer included, is zero.
func (p Page) IsNew() bool {
	for _, b := range p {
		if b != 0 {
			return false
		}
	}
	return true
}

// FeatureSlot returns the bytes of the named feature, nil if the feature is
// not enabled.
func (p Page) FeatureSlot(pfs *pagefeat.PageFeatureSet, name string) []byte {
	size := pfs.NamedFeatureSize(name)
	if size == 0 {
		return nil
	}
	off := pfs.NamedFeatureOffset(name, len(p))
	return p[off : off+size]
}

// StampFeatures records the cluster feature set in the page header. The
// extended features flag is set iff any feature is enabled.
func StampFeatures(p Page, pfs *pagefeat.PageFeatureSet) {
	flags := p.Flags() &^ common.PageFlagExtendedFeatures
	if pfs.Count() > 0 {
		flags |= common.PageFlagExtendedFeatures
	}
	p.SetFlags(flags)
	p.SetFeatures(pfs.Bitmap())
}

// CheckFeatures compares the page header against the cluster feature set.
// A page written under another layout can't be read.
func CheckFeatures(p Page, pfs *pagefeat.PageFeatureSet) error {
	hasFeatures := pfs.Count() > 0
	if p.HasFlag(common.PageFlagExtendedFeatures) != hasFeatures || p.Features() != pfs.Bitmap() {
		return ErrFeatureMismatch
	}
	return nil
}

// pageChecksum hashes every byte before the checksum slot, seeded with the
// block number so a page written to the wrong place fails verification.
func pageChecksum(p Page, slotOffset int, blkno uint32) uint64 {
	return util.HashCodeWithSeed(uint64(blkno), p[:slotOffset])
}

// SetExtendedChecksum writes the page checksum into the extended_checksums
// slot.
func SetExtendedChecksum(p Page, pfs *pagefeat.PageFeatureSet, blkno uint32) error {
	if !pfs.HasFeature(pagefeat.FeatureExtendedChecksums) {
		return ErrNoChecksumSlot
	}
	off := pfs.FeatureOffset(pagefeat.FeatureExtendedChecksums, len(p))
	util.PutUB8(p, off, pageChecksum(p, off, blkno))
	return nil
}

// VerifyExtendedChecksum checks the value written by SetExtendedChecksum.
func VerifyExtendedChecksum(p Page, pfs *pagefeat.PageFeatureSet, blkno uint32) error {
	if !pfs.HasFeature(pagefeat.FeatureExtendedChecksums) {
		return ErrNoChecksumSlot
	}
	off := pfs.FeatureOffset(pagefeat.FeatureExtendedChecksums, len(p))
	if util.ReadUB8At(p, off) != pageChecksum(p, off, blkno) {
		return ErrInvalidChecksum
	}
	return nil
}
