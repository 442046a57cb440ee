package util

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/smartystreets/assertions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadWriteLittleEndian(t *testing.T) {
	buf := make([]byte, 0, 14)
	buf = WriteUB2(buf, 0xBEEF)
	buf = WriteUB4(buf, 0xDEADBEEF)
	buf = WriteUB8(buf, 0x0102030405060708)

	assert.Equal(t, []byte{0xEF, 0xBE}, buf[:2])
	assert.Equal(t, byte(0x08), buf[6])

	cursor, v2 := ReadUB2(buf, 0)
	cursor, v4 := ReadUB4(buf, cursor)
	cursor, v8 := ReadUB8(buf, cursor)

	assert.Equal(t, 14, cursor)
	assert.Equal(t, uint16(0xBEEF), v2)
	assert.Equal(t, uint32(0xDEADBEEF), v4)
	assert.Equal(t, uint64(0x0102030405060708), v8)
}

func TestPutAt(t *testing.T) {
	buf := make([]byte, 16)
	PutUB2(buf, 1, 0x1234)
	PutUB4(buf, 3, 0xCAFEBABE)
	PutUB8(buf, 8, 42)

	assert.Equal(t, uint16(0x1234), ReadUB2At(buf, 1))
	assert.Equal(t, uint32(0xCAFEBABE), ReadUB4At(buf, 3))
	assert.Equal(t, uint64(42), ReadUB8At(buf, 8))
	assert.Equal(t, byte(0), buf[0])
}

func TestBitmapFormatting(t *testing.T) {
	assert.Equal(t, "00000101", ToBinaryString(5))
	assert.Equal(t, "00000000 00000011", FormatBitmap16(3))
	assert.Equal(t, []int{0, 1}, SetBits(3))
	assert.Empty(t, SetBits(0))
}

func TestHashCode(t *testing.T) {
	a := HashCode([]byte("788788"))
	assert.Equal(t, a, HashCode([]byte("788788")))
	assert.NotEqual(t, a, HashCode([]byte("788789")))

	joined := HashCodeWithSeed(7, []byte("page"), []byte("body"))
	assert.Equal(t, joined, HashCodeWithSeed(7, []byte("pagebody")))
	assert.NotEqual(t, joined, HashCodeWithSeed(8, []byte("pagebody")))
}

func TestWriteFileExclusive(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog")

	require.NoError(t, WriteFileExclusive(path, []byte("AB"), 0600))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, assertions.ShouldResemble(content, []byte("AB")))

	err = WriteFileExclusive(path, []byte("CD"), 0600)
	require.Error(t, err)
	assert.True(t, os.IsExist(err))

	exists, err := PathExists(path)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = PathExists(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestWriteFileExclusiveCleansUp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pg_control_iv")

	boom := errors.New("disk full")
	err := writeFileExclusive(path, 0600, func(f *os.File) error {
		if _, err := f.Write([]byte("partial")); err != nil {
			return err
		}
		return boom
	})
	assert.Equal(t, boom, err)

	exists, err := PathExists(path)
	require.NoError(t, err)
	assert.False(t, exists, "partial file removed")

	// a retry succeeds
	require.NoError(t, WriteFileExclusive(path, []byte("AB"), 0600))
}

func TestCreateDirIfNotExists(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "pg_pagefeat")
	require.NoError(t, CreateDirIfNotExists(dir, 0700))
	require.NoError(t, CreateDirIfNotExists(dir, 0700))

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
