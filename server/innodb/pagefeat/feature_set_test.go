package pagefeat

import (
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPageFeatureSet(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		pfs, err := NewPageFeatureSet("main", 64, 4)
		require.NoError(t, err)
		assert.Equal(t, "main", pfs.Name())
		assert.Equal(t, 64, pfs.BytesManaged())
		assert.Equal(t, 0, pfs.BytesUsed())
		assert.Equal(t, 0, pfs.Count())
		assert.False(t, pfs.Locked())
	})

	t.Run("invalid capacity", func(t *testing.T) {
		for _, tc := range []struct{ capacity, max int }{
			{0, 4}, {-8, 4}, {64, 0}, {64, MaxPageFeatures + 1},
		} {
			_, err := NewPageFeatureSet("bad", tc.capacity, tc.max)
			require.Error(t, err)
			assert.Equal(t, ErrInvalidCapacity, errors.Cause(err))
		}
	})
}

func TestCapacityScenario(t *testing.T) {
	pfs, err := NewPageFeatureSet("small", 16, 4)
	require.NoError(t, err)

	require.True(t, pfs.AddFeature(FeatureEncryptionTags, 0))
	assert.Equal(t, BuiltinFeatureSize(FeatureEncryptionTags), pfs.FeatureSize(FeatureEncryptionTags))

	require.True(t, pfs.AddFeatureByName("audit", 5))
	assert.Equal(t, 8, pfs.NamedFeatureSize("audit"))

	remaining := 16 - BuiltinFeatureSize(FeatureEncryptionTags) - 8
	assert.False(t, pfs.AddFeatureByName("extra", remaining+1))
	assert.False(t, pfs.HasNamedFeature("extra"))
	assert.LessOrEqual(t, pfs.BytesUsed(), pfs.BytesManaged())
}

func TestAddFeature(t *testing.T) {
	t.Run("size rounding", func(t *testing.T) {
		pfs, err := NewPageFeatureSet("round", 128, 8)
		require.NoError(t, err)
		for _, tc := range []struct {
			name      string
			size, out int
		}{
			{"a", 1, 8}, {"b", 8, 8}, {"c", 9, 16}, {"d", 23, 24},
		} {
			require.True(t, pfs.AddFeatureByName(tc.name, tc.size))
			assert.Equal(t, tc.out, pfs.NamedFeatureSize(tc.name))
		}
		assert.Equal(t, 56, pfs.BytesUsed())
	})

	t.Run("duplicates rejected", func(t *testing.T) {
		pfs, err := NewPageFeatureSet("dup", 256, 8)
		require.NoError(t, err)
		require.True(t, pfs.AddFeature(FeatureExtendedChecksums, 0))
		assert.False(t, pfs.AddFeature(FeatureExtendedChecksums, 0))
		assert.False(t, pfs.AddFeatureByName("extended_checksums", 16))

		require.True(t, pfs.AddFeatureByName("audit", 8))
		assert.False(t, pfs.AddFeatureByName("audit", 8))
		assert.Equal(t, 2, pfs.Count())
	})

	t.Run("max features", func(t *testing.T) {
		pfs, err := NewPageFeatureSet("max", 256, 2)
		require.NoError(t, err)
		require.True(t, pfs.AddFeatureByName("a", 8))
		require.True(t, pfs.AddFeatureByName("b", 8))
		assert.False(t, pfs.AddFeatureByName("c", 8))
	})

	t.Run("bad names and sizes", func(t *testing.T) {
		pfs, err := NewPageFeatureSet("names", 256, 8)
		require.NoError(t, err)
		assert.False(t, pfs.AddFeatureByName("", 8))
		assert.False(t, pfs.AddFeatureByName("has=equals", 8))
		assert.False(t, pfs.AddFeatureByName("has space", 8))
		assert.False(t, pfs.AddFeatureByName("a_name_well_over_twenty", 8))
		assert.False(t, pfs.AddFeatureByName("zero", 0))
		assert.False(t, pfs.AddFeature(MaxBuiltinFeature, 8))
		assert.Equal(t, 0, pfs.Count())
	})

	t.Run("failed add leaves set unchanged", func(t *testing.T) {
		pfs, err := NewPageFeatureSet("full", 16, 4)
		require.NoError(t, err)
		require.True(t, pfs.AddFeatureByName("a", 16))
		assert.False(t, pfs.AddFeature(FeatureEncryptionTags, 8))
		assert.False(t, pfs.HasFeature(FeatureEncryptionTags))
		assert.Equal(t, uint16(0), pfs.Bitmap())
		assert.Equal(t, 16, pfs.BytesUsed())
	})
}

func TestLockedSet(t *testing.T) {
	pfs, err := NewPageFeatureSet("locked", 128, 4)
	require.NoError(t, err)
	require.True(t, pfs.AddFeature(FeatureEncryptionTags, 0))
	pfs.Lock()

	assert.False(t, pfs.AddFeature(FeatureExtendedChecksums, 0))
	assert.False(t, pfs.AddFeatureByName("extended_checksums", 0))
	assert.Equal(t, FeatureEncryptionTags.Bit(), pfs.Bitmap())

	// user features may still be appended in memory
	assert.True(t, pfs.AddFeatureByName("audit", 8))
	assert.True(t, pfs.HasNamedFeature("audit"))
}

func TestFeatureOffsets(t *testing.T) {
	const pageSize = 8192

	pfs, err := NewPageFeatureSet("offsets", 128, 4)
	require.NoError(t, err)
	require.True(t, pfs.AddFeature(FeatureEncryptionTags, 32))
	require.True(t, pfs.AddFeatureByName("audit", 8))
	require.True(t, pfs.AddFeature(FeatureExtendedChecksums, 0))

	assert.Equal(t, pageSize-32, pfs.FeatureOffset(FeatureEncryptionTags, pageSize))
	assert.Equal(t, pageSize-40, pfs.NamedFeatureOffset("audit", pageSize))
	assert.Equal(t, pageSize-104, pfs.FeatureOffset(FeatureExtendedChecksums, pageSize))
	assert.Equal(t, 0, pfs.NamedFeatureOffset("missing", pageSize))

	// slots never overlap and stay inside the trailer
	feats := pfs.Features()
	for i := range feats {
		for j := i + 1; j < len(feats); j++ {
			a, b := feats[i], feats[j]
			assert.True(t, a.Offset+a.Size <= b.Offset || b.Offset+b.Size <= a.Offset, "%s overlaps %s", a.Name, b.Name)
		}
		assert.LessOrEqual(t, feats[i].Offset+feats[i].Size, pfs.BytesUsed())
	}
}

func TestEmptyPageFeatureSet(t *testing.T) {
	pfs := NewEmptyPageFeatureSet()
	assert.Equal(t, EmptySetName, pfs.Name())
	assert.False(t, pfs.Locked())
	assert.Equal(t, 0, pfs.BytesManaged())
	assert.False(t, pfs.HasFeature(FeatureEncryptionTags))
	assert.False(t, pfs.AddFeatureByName("audit", 8))
	assert.False(t, pfs.AddFeature(FeatureEncryptionTags, 0))

	var nilSet *PageFeatureSet
	assert.False(t, nilSet.HasFeature(FeatureEncryptionTags))
	assert.Equal(t, 0, nilSet.BytesUsed())
}

func TestConfigOptions(t *testing.T) {
	pfs, err := NewPageFeatureSet("opts", 128, 4)
	require.NoError(t, err)
	require.True(t, pfs.AddFeature(FeatureExtendedChecksums, 0))

	assert.Equal(t, map[string]bool{
		"encryption_tags":    false,
		"extended_checksums": true,
	}, pfs.ConfigOptions())
}

func TestBuiltinLookup(t *testing.T) {
	f, ok := LookupBuiltin("extended_checksums")
	require.True(t, ok)
	assert.Equal(t, FeatureExtendedChecksums, f)
	assert.Equal(t, uint16(2), f.Bit())

	_, ok = LookupBuiltin("audit")
	assert.False(t, ok)
	assert.Equal(t, "", BuiltinFeatureName(MaxBuiltinFeature))
	assert.Equal(t, 0, BuiltinFeatureSize(-1))
	assert.Equal(t, "encryption_tags", FeatureEncryptionTags.String())
}
