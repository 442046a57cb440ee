package blocks

import (
	"os"
	"path"
	"sync"

	gxbytes "github.com/dubbogo/gost/bytes"
	"github.com/pkg/errors"
	"github.com/zhukovaskychina/xmysql-tde/server/common"
)

// BlockFile represents a file that can be read and written in blocks/pages
type BlockFile struct {
	mu       sync.RWMutex
	file     *os.File
	filePath string
	size     int64

	pageSize  int
	fileNo    uint32
	permanent bool
	codec     *PageCodec
}

// Option configures a BlockFile
type Option func(*BlockFile)

// WithPageSize sets the page size; the default is common.DefaultBlockSize
func WithPageSize(pageSize int) Option {
	return func(bf *BlockFile) { bf.pageSize = pageSize }
}

// WithCodec runs every page through codec. fileNo is the relation file
// number authenticated with each page.
func WithCodec(codec *PageCodec, fileNo uint32, permanent bool) Option {
	return func(bf *BlockFile) {
		bf.codec = codec
		bf.fileNo = fileNo
		bf.permanent = permanent
	}
}

// NewBlockFile creates a new block file
func NewBlockFile(dirPath string, fileName string, initSize int64, opts ...Option) *BlockFile {
	bf := &BlockFile{
		filePath:  path.Join(dirPath, fileName),
		size:      initSize,
		pageSize:  common.DefaultBlockSize,
		permanent: true,
	}
	for _, opt := range opts {
		opt(bf)
	}
	return bf
}

// PageSize 页大小
func (bf *BlockFile) PageSize() int { return bf.pageSize }

// Open opens the block file
func (bf *BlockFile) Open() error {
	bf.mu.Lock()
	defer bf.mu.Unlock()
	return bf.open()
}

func (bf *BlockFile) open() error {
	if bf.file != nil {
		return nil
	}
	file, err := os.OpenFile(bf.filePath, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return errors.Wrapf(err, "open %s", bf.filePath)
	}

	// Initialize file size if needed
	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return err
	}
	if stat.Size() < bf.size {
		if err = file.Truncate(bf.size); err != nil {
			file.Close()
			return err
		}
	}

	bf.file = file
	return nil
}

// Close closes the block file
func (bf *BlockFile) Close() error {
	bf.mu.Lock()
	defer bf.mu.Unlock()

	if bf.file != nil {
		err := bf.file.Close()
		bf.file = nil
		return err
	}
	return nil
}

// ReadPage reads a page from the file and decodes it
func (bf *BlockFile) ReadPage(pageNo uint32) ([]byte, error) {
	bf.mu.Lock()
	defer bf.mu.Unlock()

	if err := bf.open(); err != nil {
		return nil, err
	}

	offset := int64(pageNo) * int64(bf.pageSize)
	buf := make([]byte, bf.pageSize)
	if _, err := bf.file.ReadAt(buf, offset); err != nil {
		return nil, errors.Wrapf(err, "read page %d of %s", pageNo, bf.filePath)
	}

	if bf.codec != nil {
		if err := bf.codec.Decode(buf, bf.permanent, pageNo, bf.fileNo); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

// WritePage encodes a copy of content and writes it. content itself is
// left as it was.
func (bf *BlockFile) WritePage(pageNo uint32, content []byte) error {
	if len(content) != bf.pageSize {
		return errors.Errorf("page %d is %d bytes, want %d", pageNo, len(content), bf.pageSize)
	}

	bf.mu.Lock()
	defer bf.mu.Unlock()

	if err := bf.open(); err != nil {
		return err
	}

	out := content
	if bf.codec != nil {
		bufp := gxbytes.GetBytes(bf.pageSize)
		defer gxbytes.PutBytes(bufp)
		out = (*bufp)[:bf.pageSize]
		copy(out, content)
		if err := bf.codec.Encode(out, bf.permanent, pageNo, bf.fileNo); err != nil {
			return err
		}
	}

	offset := int64(pageNo) * int64(bf.pageSize)
	if _, err := bf.file.WriteAt(out, offset); err != nil {
		return errors.Wrapf(err, "write page %d of %s", pageNo, bf.filePath)
	}
	return nil
}

// Sync syncs the file to disk
func (bf *BlockFile) Sync() error {
	bf.mu.Lock()
	defer bf.mu.Unlock()

	if bf.file != nil {
		return bf.file.Sync()
	}
	return nil
}
