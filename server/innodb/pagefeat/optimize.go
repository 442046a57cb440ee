package pagefeat

import (
	"github.com/juju/errors"
)

// optimize reorders the set in place: built-in features first in bit order,
// then user-defined features in the order they were added. Offsets are laid
// out again from the end of the page. The bitmap, count and bytes used must
// come out unchanged.
func (pfs *PageFeatureSet) optimize() error {
	if pfs.locked || len(pfs.feats) <= 1 {
		return nil
	}
	ordered := make([]FeatureDesc, 0, len(pfs.feats))

	for f := PageFeature(0); f < MaxBuiltinFeature; f++ {
		if pfs.bitmap&f.Bit() == 0 {
			continue
		}
		i := pfs.findNamed(builtinFeatureDescs[f].name)
		if i < 0 {
			return errors.Annotatef(ErrInconsistentFeatureSet, "bit %d set but %s missing", f, f)
		}
		ordered = append(ordered, pfs.feats[i])
	}
	for _, fd := range pfs.feats {
		if _, ok := LookupBuiltin(fd.Name); !ok {
			ordered = append(ordered, fd)
		}
	}

	var used int
	var bitmap uint16
	for i := range ordered {
		ordered[i].Offset = used
		used += ordered[i].Size
		if f, ok := LookupBuiltin(ordered[i].Name); ok {
			bitmap |= f.Bit()
		}
	}

	if len(ordered) != len(pfs.feats) || used != pfs.bytesUsed || bitmap != pfs.bitmap {
		return errors.Annotatef(ErrInconsistentFeatureSet,
			"count %d/%d, bytes %d/%d, bitmap %#x/%#x",
			len(ordered), len(pfs.feats), used, pfs.bytesUsed, bitmap, pfs.bitmap)
	}
	pfs.feats = ordered
	return nil
}
