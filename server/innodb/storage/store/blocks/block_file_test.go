package blocks

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zhukovaskychina/xmysql-tde/server/common"
	"github.com/zhukovaskychina/xmysql-tde/server/innodb/crypto"
	"github.com/zhukovaskychina/xmysql-tde/server/innodb/pagefeat"
	"github.com/zhukovaskychina/xmysql-tde/server/innodb/storage/store/pages"
)

const testPageSize = 8192

func tdeCodec(t *testing.T) *PageCodec {
	t.Helper()
	method := crypto.EncryptionAES256GCM

	pfs, err := pagefeat.NewPageFeatureSet("tde", common.MaxReservedPageSize, 4)
	require.NoError(t, err)
	require.True(t, pfs.AddFeature(pagefeat.FeatureEncryptionTags, crypto.SizeOfEncryptionFeature(method)))
	require.True(t, pfs.AddFeature(pagefeat.FeatureExtendedChecksums, 0))
	pfs.Lock()

	enc := crypto.NewBufferEncryption(pfs, testPageSize, crypto.NewIVAllocator(crypto.NewMemoryCounter(0)))
	require.NoError(t, enc.Initialize(method, bytes.Repeat([]byte{0x3C}, 32)))
	return NewPageCodec(pfs, enc)
}

func samplePage(pageNo uint32) pages.Page {
	p := pages.NewPage(testPageSize)
	p.SetLSN(100 + uint64(pageNo))
	p.SetPageNo(pageNo)
	p.SetType(common.PageTypeIndex)
	copy(p[common.PageHeaderSize:], []byte("row data for a secret table"))
	return p
}

func TestBlockFilePlain(t *testing.T) {
	bf := NewBlockFile(t.TempDir(), "plain.ibd", 0, WithPageSize(testPageSize))
	require.NoError(t, bf.Open())
	defer bf.Close()

	page := samplePage(3)
	require.NoError(t, bf.WritePage(3, page))
	require.NoError(t, bf.Sync())

	got, err := bf.ReadPage(3)
	require.NoError(t, err)
	assert.Equal(t, []byte(page), got)

	assert.Error(t, bf.WritePage(4, make([]byte, 100)))
}

func TestBlockFileEncrypted(t *testing.T) {
	dir := t.TempDir()
	codec := tdeCodec(t)
	bf := NewBlockFile(dir, "t1.ibd", 4*testPageSize, WithPageSize(testPageSize), WithCodec(codec, 7, true))
	defer bf.Close()

	page := samplePage(2)
	orig := append([]byte(nil), page...)
	require.NoError(t, bf.WritePage(2, page))
	assert.Equal(t, orig, []byte(page), "caller's page stays plaintext")
	require.NoError(t, bf.Sync())

	raw, err := os.ReadFile(filepath.Join(dir, "t1.ibd"))
	require.NoError(t, err)
	onDisk := pages.Page(raw[2*testPageSize : 3*testPageSize])
	assert.False(t, bytes.Contains(onDisk, []byte("secret")), "body must be encrypted on disk")
	assert.True(t, onDisk.HasFlag(common.PageFlagExtendedFeatures))
	assert.Equal(t, codec.Features().Bitmap(), onDisk.Features())

	got, err := bf.ReadPage(2)
	require.NoError(t, err)
	body := len(got) - codec.Features().BytesUsed()
	assert.Equal(t, orig[common.PageHeaderSize:body], got[common.PageHeaderSize:body])
	assert.Equal(t, uint32(2), pages.Page(got).PageNo())

	// never written pages come back zeroed
	blank, err := bf.ReadPage(0)
	require.NoError(t, err)
	assert.True(t, pages.Page(blank).IsNew())
}

func TestBlockFileRelocatedPage(t *testing.T) {
	dir := t.TempDir()
	codec := tdeCodec(t)
	bf := NewBlockFile(dir, "t2.ibd", 0, WithPageSize(testPageSize), WithCodec(codec, 7, true))
	require.NoError(t, bf.WritePage(1, samplePage(1)))
	require.NoError(t, bf.Close())

	// copy block 1 over block 5
	raw, err := os.ReadFile(filepath.Join(dir, "t2.ibd"))
	require.NoError(t, err)
	f, err := os.OpenFile(filepath.Join(dir, "t2.ibd"), os.O_RDWR, 0644)
	require.NoError(t, err)
	_, err = f.WriteAt(raw[testPageSize:2*testPageSize], 5*testPageSize)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = bf.ReadPage(5)
	require.Error(t, err)
	assert.Equal(t, crypto.ErrAuthenticationFailed, errors.Cause(err))

	// same block under another file number
	other := NewBlockFile(dir, "t2.ibd", 0, WithPageSize(testPageSize), WithCodec(codec, 8, true))
	defer other.Close()
	_, err = other.ReadPage(1)
	assert.Equal(t, crypto.ErrAuthenticationFailed, errors.Cause(err))
}

func TestPageCodecFeatureMismatch(t *testing.T) {
	codec := tdeCodec(t)
	page := samplePage(1)
	require.NoError(t, codec.Encode(page, true, 1, 1))

	plain := NewPageCodec(pagefeat.NewEmptyPageFeatureSet(), nil)
	err := plain.Decode(page, true, 1, 1)
	assert.Equal(t, pages.ErrFeatureMismatch, errors.Cause(err))
}

func TestPageCodecZeroedHeader(t *testing.T) {
	codec := tdeCodec(t)
	page := samplePage(2)
	require.NoError(t, codec.Encode(page, true, 2, 7))
	sealed := append([]byte(nil), page...)

	clear(page[:common.PageHeaderSize])
	err := codec.Decode(page, true, 2, 7)
	require.Error(t, err, "a wiped header must not pass as an unwritten page")
	assert.Equal(t, sealed[common.PageHeaderSize:], []byte(page[common.PageHeaderSize:]))

	// same through the block file
	dir := t.TempDir()
	bf := NewBlockFile(dir, "t3.ibd", 0, WithPageSize(testPageSize), WithCodec(codec, 7, true))
	defer bf.Close()
	require.NoError(t, bf.WritePage(2, samplePage(2)))
	require.NoError(t, bf.Sync())

	f, err := os.OpenFile(filepath.Join(dir, "t3.ibd"), os.O_RDWR, 0644)
	require.NoError(t, err)
	_, err = f.WriteAt(make([]byte, common.PageHeaderSize), 2*testPageSize)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = bf.ReadPage(2)
	assert.Error(t, err)
}

func TestPageCodecChecksumOnly(t *testing.T) {
	pfs, err := pagefeat.NewPageFeatureSet("ck", 64, 1)
	require.NoError(t, err)
	require.True(t, pfs.AddFeature(pagefeat.FeatureExtendedChecksums, 0))
	pfs.Lock()
	codec := NewPageCodec(pfs, nil)

	page := samplePage(4)
	require.NoError(t, codec.Encode(page, true, 4, 1))
	require.NoError(t, codec.Decode(page, true, 4, 1))

	page[100] ^= 0xFF
	err = codec.Decode(page, true, 4, 1)
	assert.Equal(t, pages.ErrInvalidChecksum, errors.Cause(err))
}
