package manager

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"github.com/zhukovaskychina/xmysql-tde/logger"
	"github.com/zhukovaskychina/xmysql-tde/util"
)

const (
	// ControlDir 控制文件目录
	ControlDir = "global"
	// ControlFileName holds the cluster-wide IV counter.
	ControlFileName = "pg_control_iv"

	// counter (8 B LE) + xxhash64 of the counter (8 B LE)
	controlFileSize = 16
)

// ControlFile is the durable shared IV counter. Every increment takes an
// exclusive file lock, so any number of processes on the same data
// directory can share it.
type ControlFile struct {
	mu   sync.Mutex
	path string
}

// ControlFilePath returns the counter file of a data directory.
func ControlFilePath(dataDir string) string {
	return filepath.Join(dataDir, ControlDir, ControlFileName)
}

// CreateControlFile writes a new counter file starting at zero.
func CreateControlFile(dataDir string) (*ControlFile, error) {
	path := ControlFilePath(dataDir)
	if err := util.WriteFileExclusive(path, encodeCounter(0), 0600); err != nil {
		if os.IsExist(err) {
			return nil, errors.Wrap(ErrControlFileExists, path)
		}
		return nil, errors.Wrapf(err, "creating %s", path)
	}
	return &ControlFile{path: path}, nil
}

// OpenControlFile opens an existing counter file and checks it.
func OpenControlFile(dataDir string) (*ControlFile, error) {
	cf := &ControlFile{path: ControlFilePath(dataDir)}
	if _, err := cf.Load(); err != nil {
		return nil, err
	}
	return cf, nil
}

// Path 控制文件路径
func (cf *ControlFile) Path() string { return cf.path }

// Load returns the current counter value.
func (cf *ControlFile) Load() (uint64, error) {
	cf.mu.Lock()
	defer cf.mu.Unlock()

	f, err := os.Open(cf.path)
	if err != nil {
		return 0, errors.Wrapf(err, "opening %s", cf.path)
	}
	defer f.Close()
	return cf.read(f)
}

// IncrementAndFetch advances the counter by one and returns the new value
// once it is on disk.
func (cf *ControlFile) IncrementAndFetch() (uint64, error) {
	cf.mu.Lock()
	defer cf.mu.Unlock()

	f, err := os.OpenFile(cf.path, os.O_RDWR, 0)
	if err != nil {
		return 0, errors.Wrapf(err, "opening %s", cf.path)
	}
	defer f.Close()

	if err := lockFile(f); err != nil {
		return 0, errors.Wrapf(err, "locking %s", cf.path)
	}
	defer unlockFile(f)

	v, err := cf.read(f)
	if err != nil {
		return 0, err
	}
	v++
	if _, err := f.WriteAt(encodeCounter(v), 0); err != nil {
		return 0, errors.Wrapf(err, "writing %s", cf.path)
	}
	if err := f.Sync(); err != nil {
		return 0, errors.Wrapf(err, "syncing %s", cf.path)
	}

	rec := IVCounterRecord{Counter: v}
	logger.Debugf("ivcounter %s: %s", rec.Identify(), rec.Desc())
	return v, nil
}

func (cf *ControlFile) read(f *os.File) (uint64, error) {
	buf := make([]byte, controlFileSize)
	if _, err := f.ReadAt(buf, 0); err != nil {
		if err == io.EOF {
			return 0, errors.Wrapf(ErrControlFileCorrupted, "%s: short file", cf.path)
		}
		return 0, errors.Wrapf(err, "reading %s", cf.path)
	}
	v := util.ReadUB8At(buf, 0)
	if util.ReadUB8At(buf, 8) != util.HashCode(buf[:8]) {
		return 0, errors.Wrapf(ErrControlFileCorrupted, "%s: checksum mismatch", cf.path)
	}
	return v, nil
}

func encodeCounter(v uint64) []byte {
	buf := make([]byte, controlFileSize)
	util.PutUB8(buf, 0, v)
	util.PutUB8(buf, 8, util.HashCode(buf[:8]))
	return buf
}

// IVCounterRecord is the log record written when the counter advances.
//
//	| info (1) | counter (8, LE) |
type IVCounterRecord struct {
	Counter uint64
}

// XLogIVCounterLog is the only record type.
const XLogIVCounterLog byte = 0x00

// Encode 序列化
func (r IVCounterRecord) Encode() []byte {
	buf := make([]byte, 0, 9)
	buf = append(buf, XLogIVCounterLog)
	return util.WriteUB8(buf, r.Counter)
}

// DecodeIVCounterRecord parses an encoded record.
func DecodeIVCounterRecord(data []byte) (IVCounterRecord, error) {
	if len(data) != 9 || data[0] != XLogIVCounterLog {
		return IVCounterRecord{}, errors.Wrapf(ErrInvalidRecord, "%d bytes", len(data))
	}
	return IVCounterRecord{Counter: util.ReadUB8At(data, 1)}, nil
}

// Desc renders the record body.
func (r IVCounterRecord) Desc() string {
	return fmt.Sprintf("setcnt %d", r.Counter)
}

// Identify names the record type.
func (r IVCounterRecord) Identify() string {
	return "LOG"
}
