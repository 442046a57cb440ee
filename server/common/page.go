package common

// Page geometry. Every page starts with an unencrypted header of
// PageHeaderSize bytes, then the body, then the reserved trailer.
//
//	+----------------+---------------------------+-------------------+
//	| header (32 B)  | body (encrypted if TDE)   | reserved trailer  |
//	+----------------+---------------------------+-------------------+
//	0                32                          pageSize-reserved   pageSize
//
// All multi-byte header fields are little endian.
const (
	PageLSNOffset      = 0
	PageSpaceIDOffset  = 8
	PagePageNoOffset   = 12
	PageTypeOffset     = 16
	PageFlagsOffset    = 18
	PageFeaturesOffset = 20
	PageVersionOffset  = 22
	PagePrevOffset     = 24
	PageNextOffset     = 28
	PageHeaderSize     = 32
	PageEncryptOffset  = PageHeaderSize
	PageLayoutVersion  = 1
)

// MaxPageFeatureNameLen bounds a feature name in the catalog file.
const MaxPageFeatureNameLen = 20

// PageFlag 页头 flags 字段
type PageFlag uint16

const (
	// PageFlagExtendedFeatures is set whenever the cluster has any page
	// feature enabled; the trailer layout is then the committed feature set.
	PageFlagExtendedFeatures PageFlag = 1 << iota
	// PageFlagAllVisible is carried through untouched by this layer.
	PageFlagAllVisible
)

// PageType 页面类型
type PageType uint16

const (
	PageTypeAllocated PageType = 0x0000
	PageTypeUndoLog   PageType = 0x0002
	PageTypeInode     PageType = 0x0003
	PageTypeSys       PageType = 0x0006
	PageTypeFspHdr    PageType = 0x0008
	PageTypeBlob      PageType = 0x000A
	PageTypeIndex     PageType = 0x45BF
)

func (pt PageType) String() string {
	switch pt {
	case PageTypeAllocated:
		return "Allocated"
	case PageTypeUndoLog:
		return "UndoLog"
	case PageTypeInode:
		return "Inode"
	case PageTypeSys:
		return "Sys"
	case PageTypeFspHdr:
		return "FspHdr"
	case PageTypeBlob:
		return "Blob"
	case PageTypeIndex:
		return "Index"
	default:
		return "Unknown"
	}
}
