package pagefeat

// PageFeature identifies a built-in page feature; the value is also its bit
// in the feature bitmap.
type PageFeature int

const (
	// FeatureEncryptionTags holds the per-page IV and AEAD tag.
	FeatureEncryptionTags PageFeature = iota
	// FeatureExtendedChecksums holds a wide page checksum.
	FeatureExtendedChecksums
	// MaxBuiltinFeature must stay last.
	MaxBuiltinFeature
)

type builtinFeatureDesc struct {
	name string
	size int
}

// Default widths, indexed by feature. The encryption default is only the
// minimum slot; a cluster created with encryption registers the slot with
// the size its method needs.
var builtinFeatureDescs = [MaxBuiltinFeature]builtinFeatureDesc{
	FeatureEncryptionTags:    {name: "encryption_tags", size: 8},
	FeatureExtendedChecksums: {name: "extended_checksums", size: 64},
}

func (f PageFeature) valid() bool {
	return f >= 0 && f < MaxBuiltinFeature
}

// Bit returns the bitmap bit of f.
func (f PageFeature) Bit() uint16 {
	return 1 << uint(f)
}

func (f PageFeature) String() string {
	if !f.valid() {
		return "unknown"
	}
	return builtinFeatureDescs[f].name
}

// BuiltinFeatureName 内置特性名称；非法 id 返回空串
func BuiltinFeatureName(f PageFeature) string {
	if !f.valid() {
		return ""
	}
	return builtinFeatureDescs[f].name
}

// BuiltinFeatureSize returns the default size of a built-in feature.
func BuiltinFeatureSize(f PageFeature) int {
	if !f.valid() {
		return 0
	}
	return builtinFeatureDescs[f].size
}

// LookupBuiltin resolves a feature name to its built-in id.
func LookupBuiltin(name string) (PageFeature, bool) {
	for i := PageFeature(0); i < MaxBuiltinFeature; i++ {
		if builtinFeatureDescs[i].name == name {
			return i, true
		}
	}
	return -1, false
}
