package pagefeat

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/juju/errors"
	"github.com/zhukovaskychina/xmysql-tde/logger"
	"github.com/zhukovaskychina/xmysql-tde/server/common"
	"github.com/zhukovaskychina/xmysql-tde/util"
)

// Catalog file layout, one record per line:
//
//	features <count> <total bytes>
//	<name>=<offset>,<size>
//	...
//
// Feature lines appear in layout order and offsets are running totals.
const catalogHeaderTag = "features"

const catalogFileMode = 0600

// WritePageFeatureSet optimizes the set, writes it to a new file at path and
// locks it. The file must not exist yet. On success the set is the layout
// every page of the cluster will follow.
func WritePageFeatureSet(pfs *PageFeatureSet, path string) error {
	if err := pfs.optimize(); err != nil {
		return errors.Trace(err)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s %d %d\n", catalogHeaderTag, len(pfs.feats), pfs.bytesUsed)

	var offset int
	for _, fd := range pfs.feats {
		if fd.Offset != offset {
			return errors.Annotatef(ErrInconsistentFeatureSet, "feature %s at offset %d, expected %d", fd.Name, fd.Offset, offset)
		}
		fmt.Fprintf(&buf, "%s=%d,%d\n", fd.Name, fd.Offset, fd.Size)
		offset += fd.Size
	}
	if offset != pfs.bytesUsed {
		return errors.Annotatef(ErrInconsistentFeatureSet, "features sum to %d bytes, set uses %d", offset, pfs.bytesUsed)
	}

	if err := util.WriteFileExclusive(path, buf.Bytes(), catalogFileMode); err != nil {
		if os.IsExist(err) {
			return errors.Annotatef(ErrCatalogExists, "%s", path)
		}
		return errors.Annotatef(err, "couldn't write page feature catalog %s", path)
	}

	pfs.locked = true
	logger.Infof("page feature set %s written: %d features, %d bytes", pfs.name, len(pfs.feats), pfs.bytesUsed)
	return nil
}

// ReadPageFeatureSet loads a catalog written by WritePageFeatureSet. The
// returned set is locked and named after the file.
func ReadPageFeatureSet(path string) (*PageFeatureSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Annotatef(err, "couldn't open page feature catalog %s", path)
	}
	defer f.Close()

	corrupted := func(format string, args ...interface{}) error {
		return errors.Annotatef(ErrCatalogCorrupted, "%s: %s", path, fmt.Sprintf(format, args...))
	}

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, errors.Annotatef(err, "couldn't read page feature catalog %s", path)
		}
		return nil, corrupted("missing header line")
	}
	count, total, err := parseCatalogHeader(scanner.Text())
	if err != nil {
		return nil, corrupted("%v", err)
	}

	name := filepath.Base(path)
	var pfs *PageFeatureSet
	if count == 0 {
		pfs = &PageFeatureSet{name: name}
	} else if pfs, err = NewPageFeatureSet(name, total, count); err != nil {
		return nil, corrupted("header declares %d features in %d bytes", count, total)
	}

	lineno := 1
	for scanner.Scan() {
		lineno++
		fname, offset, size, err := parseCatalogFeature(scanner.Text())
		if err != nil {
			return nil, corrupted("line %d: %v", lineno, err)
		}
		if offset > total || size > total {
			return nil, corrupted("line %d: feature %s (offset %d, size %d) outside %d reserved bytes", lineno, fname, offset, size, total)
		}
		if offset != pfs.bytesUsed {
			return nil, corrupted("line %d: feature %s at offset %d, expected %d", lineno, fname, offset, pfs.bytesUsed)
		}
		if !pfs.AddFeatureByName(fname, size) {
			return nil, corrupted("line %d: couldn't add feature %s", lineno, fname)
		}
		if got := pfs.feats[len(pfs.feats)-1].Size; got != size {
			return nil, corrupted("line %d: feature %s size %d is not chunk aligned", lineno, fname, size)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Annotatef(err, "couldn't read page feature catalog %s", path)
	}

	if len(pfs.feats) != count {
		return nil, corrupted("read different count of features than in header line")
	}
	if pfs.bytesUsed != total {
		return nil, corrupted("read different size of features than in header line")
	}

	pfs.locked = true
	logger.Debugf("page feature set %s loaded: %d features, %d bytes, bitmap %s",
		name, count, total, util.FormatBitmap16(pfs.bitmap))
	return pfs, nil
}

func parseCatalogHeader(line string) (count, total int, err error) {
	fields := strings.Fields(line)
	if len(fields) != 3 || fields[0] != catalogHeaderTag {
		return 0, 0, fmt.Errorf("bad header line %q", line)
	}
	if count, err = strconv.Atoi(fields[1]); err != nil || count < 0 || count > MaxPageFeatures {
		return 0, 0, fmt.Errorf("bad feature count %q", fields[1])
	}
	if total, err = strconv.Atoi(fields[2]); err != nil || total < 0 {
		return 0, 0, fmt.Errorf("bad total size %q", fields[2])
	}
	if total > common.MaxReservedPageSize {
		return 0, 0, fmt.Errorf("total size %d exceeds the maximum reserved size %d", total, common.MaxReservedPageSize)
	}
	if (count == 0) != (total == 0) {
		return 0, 0, fmt.Errorf("header declares %d features in %d bytes", count, total)
	}
	return count, total, nil
}

func parseCatalogFeature(line string) (name string, offset, size int, err error) {
	eq := strings.IndexByte(line, '=')
	if eq <= 0 {
		return "", 0, 0, fmt.Errorf("bad feature line %q", line)
	}
	name = line[:eq]
	parts := strings.Split(line[eq+1:], ",")
	if len(parts) != 2 {
		return "", 0, 0, fmt.Errorf("bad feature line %q", line)
	}
	if offset, err = strconv.Atoi(parts[0]); err != nil || offset < 0 {
		return "", 0, 0, fmt.Errorf("bad offset in %q", line)
	}
	if size, err = strconv.Atoi(parts[1]); err != nil || size <= 0 {
		return "", 0, 0, fmt.Errorf("bad size in %q", line)
	}
	return name, offset, size, nil
}
