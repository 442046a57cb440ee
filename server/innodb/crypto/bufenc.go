package crypto

import (
	"encoding/binary"

	gxbytes "github.com/dubbogo/gost/bytes"
	"github.com/pkg/errors"
	"github.com/zhukovaskychina/xmysql-tde/logger"
	"github.com/zhukovaskychina/xmysql-tde/server/common"
	"github.com/zhukovaskychina/xmysql-tde/server/innodb/pagefeat"
	"github.com/zhukovaskychina/xmysql-tde/util"
)

// aadSize is the unencrypted header followed by file number and block
// number, both little endian. 40 bytes, no padding.
const aadSize = common.PageEncryptOffset + 4 + 4

// BufferEncryption encrypts page bodies in place. The IV and tag of every
// page live in its encryption_tags slot:
//
//	slot: | IV (16) | tag (16) | unused |
//
// The engine is created uninitialized and Initialize moves it to its final
// state. A BufferEncryption is not safe for concurrent use; callers
// serialize page writes.
type BufferEncryption struct {
	features *pagefeat.PageFeatureSet
	pageSize int
	ivs      *IVAllocator

	initialized bool
	method      EncryptionMethod
	encCtx      *CipherCtx
	decCtx      *CipherCtx

	slotOffset int
	encLen     int
}

// NewBufferEncryption binds the engine to the loaded feature set and the
// process IV allocator.
func NewBufferEncryption(features *pagefeat.PageFeatureSet, pageSize int, ivs *IVAllocator) *BufferEncryption {
	return &BufferEncryption{
		features: features,
		pageSize: pageSize,
		ivs:      ivs,
	}
}

// Initialize sets up the encrypt and decrypt contexts for method. It is a
// no-op for EncryptionDisabled and may only be called once.
func (be *BufferEncryption) Initialize(method EncryptionMethod, key []byte) error {
	if be.initialized {
		return ErrAlreadyInitialized
	}
	if method == EncryptionDisabled {
		be.initialized = true
		return nil
	}

	if !be.features.HasFeature(pagefeat.FeatureEncryptionTags) {
		return ErrNoEncryptionFeature
	}
	slotSize := be.features.FeatureSize(pagefeat.FeatureEncryptionTags)
	if slotSize < SizeOfEncryptionFeature(method) {
		return errors.Wrapf(ErrFeatureSlotTooSmall, "%s needs %d bytes, slot has %d",
			method, SizeOfEncryptionFeature(method), slotSize)
	}
	if be.ivs == nil {
		return errors.New("no IV allocator")
	}

	slotOffset := be.features.FeatureOffset(pagefeat.FeatureEncryptionTags, be.pageSize)
	encLen := slotOffset - common.PageEncryptOffset
	if encLen <= 0 {
		return errors.Errorf("page size %d leaves no room to encrypt", be.pageSize)
	}

	encCtx, err := NewCipherCtx(method, key, true)
	if err != nil {
		return errors.Wrap(err, "cannot initialize encryption context")
	}
	decCtx, err := NewCipherCtx(method, key, false)
	if err != nil {
		return errors.Wrap(err, "cannot initialize decryption context")
	}

	be.method = method
	be.encCtx = encCtx
	be.decCtx = decCtx
	be.slotOffset = slotOffset
	be.encLen = encLen
	be.initialized = true

	logger.Infof("page encryption initialized: method %s, %d bytes encrypted per page, slot at %d",
		method, encLen, slotOffset)
	return nil
}

// Enabled reports whether pages are encrypted.
func (be *BufferEncryption) Enabled() bool {
	return be.initialized && be.method != EncryptionDisabled
}

// Method 当前加密算法
func (be *BufferEncryption) Method() EncryptionMethod { return be.method }

// EncryptedLength is the number of body bytes encrypted per page.
func (be *BufferEncryption) EncryptedLength() int { return be.encLen }

func (be *BufferEncryption) check(page []byte) error {
	if !be.Enabled() {
		return ErrNotInitialized
	}
	if len(page) != be.pageSize {
		return errors.Wrapf(ErrInvalidPageSize, "got %d, want %d", len(page), be.pageSize)
	}
	return nil
}

func setupAAD(aad *[aadSize]byte, page []byte, blkno, fileno uint32) {
	copy(aad[:common.PageEncryptOffset], page[:common.PageEncryptOffset])
	binary.LittleEndian.PutUint32(aad[common.PageEncryptOffset:], fileno)
	binary.LittleEndian.PutUint32(aad[common.PageEncryptOffset+4:], blkno)
}

// EncryptPage encrypts the body of page in place with a fresh IV and stores
// the IV and tag in the encryption slot. The page header stays plaintext
// and is authenticated together with fileno and blkno.
func (be *BufferEncryption) EncryptPage(page []byte, permanent bool, blkno, fileno uint32) error {
	if err := be.check(page); err != nil {
		return err
	}
	if permanent && util.ReadUB8At(page, common.PageLSNOffset) == 0 {
		return errors.Wrapf(ErrInvalidLSN, "block %d of file %d", blkno, fileno)
	}

	iv, err := be.ivs.Next()
	if err != nil {
		return errors.Wrapf(err, "cannot encrypt page %d", blkno)
	}

	var aad [aadSize]byte
	setupAAD(&aad, page, blkno, fileno)

	bufp := gxbytes.GetBytes(be.encLen + AuthTagSize)
	defer func() {
		clear(*bufp)
		gxbytes.PutBytes(bufp)
	}()

	region := page[common.PageEncryptOffset:be.slotOffset]
	sealed, err := be.encCtx.Seal((*bufp)[:0], iv[:], region, aad[:])
	if err != nil {
		return errors.Wrapf(err, "cannot encrypt page %d", blkno)
	}
	if len(sealed) != be.encLen+AuthTagSize {
		return errors.Wrapf(ErrEncryptedLength, "page %d: %d bytes", blkno, len(sealed)-AuthTagSize)
	}

	copy(region, sealed[:be.encLen])
	slot := page[be.slotOffset:]
	copy(slot[:IVSize], iv[:])
	copy(slot[IVSize:IVSize+AuthTagSize], sealed[be.encLen:])
	return nil
}

// DecryptPage verifies and decrypts page in place using the IV and tag in
// its encryption slot. On failure the page is left untouched.
func (be *BufferEncryption) DecryptPage(page []byte, permanent bool, blkno, fileno uint32) error {
	if err := be.check(page); err != nil {
		return err
	}

	slot := page[be.slotOffset:]
	iv := slot[:IVSize]

	var aad [aadSize]byte
	setupAAD(&aad, page, blkno, fileno)

	bufp := gxbytes.GetBytes(be.encLen + AuthTagSize)
	defer func() {
		clear(*bufp)
		gxbytes.PutBytes(bufp)
	}()

	region := page[common.PageEncryptOffset:be.slotOffset]
	sealed := (*bufp)[:be.encLen+AuthTagSize]
	copy(sealed, region)
	copy(sealed[be.encLen:], slot[IVSize:IVSize+AuthTagSize])

	plain, err := be.decCtx.Open(sealed[:0], iv, sealed, aad[:])
	if err != nil {
		return errors.Wrapf(err, "cannot decrypt page %d of file %d", blkno, fileno)
	}
	if len(plain) != be.encLen {
		return errors.Wrapf(ErrEncryptedLength, "page %d: %d bytes", blkno, len(plain))
	}
	copy(region, plain)
	return nil
}
