package pagefeat

import (
	"strings"

	"github.com/juju/errors"
	"github.com/zhukovaskychina/xmysql-tde/server/common"
)

// MaxPageFeatures bounds how many features one set may carry; the bitmap is
// 16 bits wide.
const MaxPageFeatures = 16

// EmptySetName names the set used when a cluster has no features.
const EmptySetName = "empty"

// FeatureDesc is one allocated feature. Offset counts from the end of the
// page, so the absolute position is pageSize - Offset - Size.
type FeatureDesc struct {
	Name   string
	Offset int
	Size   int
}

// PageFeatureSet records which features occupy the reserved trailer of every
// page, their sizes and their positions.
//
// A set is built up with AddFeature/AddFeatureByName and then committed with
// WritePageFeatureSet, which also locks it. After that it is read-only apart
// from user-defined features.
type PageFeatureSet struct {
	name          string
	bytesCapacity int
	maxFeatures   int
	bytesUsed     int
	locked        bool
	bitmap        uint16
	feats         []FeatureDesc
}

// NewPageFeatureSet creates an empty set managing up to capacity bytes of
// trailer space and at most maxFeatures entries.
func NewPageFeatureSet(name string, capacity, maxFeatures int) (*PageFeatureSet, error) {
	if capacity <= 0 || maxFeatures <= 0 || maxFeatures > MaxPageFeatures {
		return nil, errors.Annotatef(ErrInvalidCapacity, "capacity %d, max features %d", capacity, maxFeatures)
	}
	return &PageFeatureSet{
		name:          name,
		bytesCapacity: capacity,
		maxFeatures:   maxFeatures,
		feats:         make([]FeatureDesc, 0, maxFeatures),
	}, nil
}

// NewEmptyPageFeatureSet returns the zero-capacity set of a cluster with no
// page features.
func NewEmptyPageFeatureSet() *PageFeatureSet {
	return &PageFeatureSet{name: EmptySetName}
}

func roundSize(size int) int {
	return (size + common.ReservedChunkSize - 1) &^ (common.ReservedChunkSize - 1)
}

func validFeatureName(name string) bool {
	if name == "" || len(name) > common.MaxPageFeatureNameLen {
		return false
	}
	return !strings.ContainsAny(name, "=, \t\r\n")
}

// AddFeature enables a built-in feature. A size of 0 selects the default
// width. Returns false if the set is locked or full, the feature is already
// present or the id is unknown.
func (pfs *PageFeatureSet) AddFeature(feature PageFeature, size int) bool {
	if !feature.valid() || pfs.locked {
		return false
	}
	if pfs.bitmap&feature.Bit() != 0 {
		return false
	}
	if size <= 0 {
		size = builtinFeatureDescs[feature].size
	}
	if !pfs.append(builtinFeatureDescs[feature].name, size) {
		return false
	}
	pfs.bitmap |= feature.Bit()
	return true
}

// AddFeatureByName enables a feature by name. Built-in names go through
// AddFeature; anything else becomes a user-defined feature, which is
// allowed even on a locked set.
func (pfs *PageFeatureSet) AddFeatureByName(name string, size int) bool {
	if f, ok := LookupBuiltin(name); ok {
		return pfs.AddFeature(f, size)
	}
	if size <= 0 || !validFeatureName(name) || pfs.findNamed(name) >= 0 {
		return false
	}
	return pfs.append(name, size)
}

// append places a new feature directly in front of the previous one.
func (pfs *PageFeatureSet) append(name string, size int) bool {
	size = roundSize(size)
	if len(pfs.feats) >= pfs.maxFeatures || pfs.bytesUsed+size > pfs.bytesCapacity {
		return false
	}
	pfs.feats = append(pfs.feats, FeatureDesc{Name: name, Offset: pfs.bytesUsed, Size: size})
	pfs.bytesUsed += size
	return true
}

func (pfs *PageFeatureSet) findNamed(name string) int {
	for i := range pfs.feats {
		if pfs.feats[i].Name == name {
			return i
		}
	}
	return -1
}

// HasFeature 内置特性是否启用
func (pfs *PageFeatureSet) HasFeature(feature PageFeature) bool {
	if pfs == nil || !feature.valid() {
		return false
	}
	return pfs.bitmap&feature.Bit() != 0
}

// HasNamedFeature 按名称判断特性是否存在
func (pfs *PageFeatureSet) HasNamedFeature(name string) bool {
	if pfs == nil {
		return false
	}
	return pfs.findNamed(name) >= 0
}

// FeatureSize returns the allocated size of a built-in feature, 0 if absent.
func (pfs *PageFeatureSet) FeatureSize(feature PageFeature) int {
	if !pfs.HasFeature(feature) {
		return 0
	}
	return pfs.NamedFeatureSize(builtinFeatureDescs[feature].name)
}

// NamedFeatureSize returns the allocated size of a feature, 0 if absent.
func (pfs *PageFeatureSet) NamedFeatureSize(name string) int {
	if pfs == nil {
		return 0
	}
	if i := pfs.findNamed(name); i >= 0 {
		return pfs.feats[i].Size
	}
	return 0
}

// FeatureOffset returns the absolute byte position of a built-in feature
// within a page of pageSize bytes, or 0 if the feature is absent.
func (pfs *PageFeatureSet) FeatureOffset(feature PageFeature, pageSize int) int {
	if !pfs.HasFeature(feature) {
		return 0
	}
	return pfs.NamedFeatureOffset(builtinFeatureDescs[feature].name, pageSize)
}

// NamedFeatureOffset is FeatureOffset by name.
func (pfs *PageFeatureSet) NamedFeatureOffset(name string, pageSize int) int {
	if pfs == nil {
		return 0
	}
	if i := pfs.findNamed(name); i >= 0 {
		return pageSize - pfs.feats[i].Offset - pfs.feats[i].Size
	}
	return 0
}

// Name returns the registry name.
func (pfs *PageFeatureSet) Name() string { return pfs.name }

// BytesUsed is the trailer space taken by the enabled features.
func (pfs *PageFeatureSet) BytesUsed() int {
	if pfs == nil {
		return 0
	}
	return pfs.bytesUsed
}

// BytesManaged is the capacity of the set.
func (pfs *PageFeatureSet) BytesManaged() int { return pfs.bytesCapacity }

// Count 已启用特性数
func (pfs *PageFeatureSet) Count() int { return len(pfs.feats) }

// MaxFeatures 最大特性数
func (pfs *PageFeatureSet) MaxFeatures() int { return pfs.maxFeatures }

// Bitmap returns the built-in feature bitmap stamped into page headers.
func (pfs *PageFeatureSet) Bitmap() uint16 {
	if pfs == nil {
		return 0
	}
	return pfs.bitmap
}

// Locked reports whether the set has been committed.
func (pfs *PageFeatureSet) Locked() bool { return pfs.locked }

// Lock freezes the built-in part of the set.
func (pfs *PageFeatureSet) Lock() { pfs.locked = true }

// Features returns a copy of the allocated features in allocation order.
func (pfs *PageFeatureSet) Features() []FeatureDesc {
	out := make([]FeatureDesc, len(pfs.feats))
	copy(out, pfs.feats)
	return out
}

// ConfigOptions reports every built-in feature and whether it is enabled,
// keyed by feature name, for exposing as read-only settings.
func (pfs *PageFeatureSet) ConfigOptions() map[string]bool {
	opts := make(map[string]bool, int(MaxBuiltinFeature))
	for f := PageFeature(0); f < MaxBuiltinFeature; f++ {
		opts[builtinFeatureDescs[f].name] = pfs.HasFeature(f)
	}
	return opts
}
