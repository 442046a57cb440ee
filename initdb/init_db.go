package initdb

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/zhukovaskychina/xmysql-tde/logger"
	"github.com/zhukovaskychina/xmysql-tde/server/common"
	"github.com/zhukovaskychina/xmysql-tde/server/conf"
	"github.com/zhukovaskychina/xmysql-tde/server/innodb/crypto"
	"github.com/zhukovaskychina/xmysql-tde/server/innodb/manager"
	"github.com/zhukovaskychina/xmysql-tde/server/innodb/pagefeat"
	"github.com/zhukovaskychina/xmysql-tde/util"
)

// DefaultKeyFile is generated under the data directory when encryption is
// enabled and no key is configured.
const DefaultKeyFile = "global/master.key"

const dirMode = 0700

// KeyFilePath resolves the configured key file; relative paths are taken
// from the data directory.
func KeyFilePath(cfg *conf.Cfg) string {
	path := cfg.InnodbEncryption.KeyFile
	if path == "" {
		path = DefaultKeyFile
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(cfg.DataDir, path)
	}
	return path
}

// InitCluster creates a new data directory: the page feature catalog, the
// IV counter and, for an encrypted cluster without a configured key, a
// fresh master key. The feature layout written here is fixed for the life
// of the cluster.
func InitCluster(cfg *conf.Cfg) (*pagefeat.PageFeatureSet, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	method, err := cfg.EncryptionMethod()
	if err != nil {
		return nil, err
	}

	for _, dir := range []string{
		cfg.DataDir,
		filepath.Join(cfg.DataDir, pagefeat.CatalogDir),
		filepath.Join(cfg.DataDir, manager.ControlDir),
	} {
		if err := util.CreateDirIfNotExists(dir, dirMode); err != nil {
			return nil, errors.Wrapf(err, "creating %s", dir)
		}
	}

	pfs, err := buildFeatureSet(cfg, method)
	if err != nil {
		return nil, err
	}
	if cfg.InnodbPageFeatureSet != "" {
		if err := pagefeat.WritePageFeatureSet(pfs, pagefeat.CatalogPath(cfg.DataDir, cfg.InnodbPageFeatureSet)); err != nil {
			return nil, err
		}
	}

	if _, err := manager.CreateControlFile(cfg.DataDir); err != nil {
		return nil, err
	}

	if method != crypto.EncryptionDisabled && cfg.InnodbEncryption.MasterKey == "" {
		if err := ensureKeyFile(KeyFilePath(cfg)); err != nil {
			return nil, err
		}
	}

	logger.Infof("cluster initialized in %s: page size %d, %d page features (%d bytes), encryption %s",
		cfg.DataDir, cfg.InnodbPageSize, pfs.Count(), pfs.BytesUsed(), method)
	return pfs, nil
}

type requestedFeature struct {
	name string
	size int
}

func buildFeatureSet(cfg *conf.Cfg, method crypto.EncryptionMethod) (*pagefeat.PageFeatureSet, error) {
	var requested []requestedFeature
	if method != crypto.EncryptionDisabled {
		requested = append(requested, requestedFeature{
			name: pagefeat.BuiltinFeatureName(pagefeat.FeatureEncryptionTags),
			size: crypto.SizeOfEncryptionFeature(method),
		})
	}
	if cfg.InnodbExtendedChecksums {
		requested = append(requested, requestedFeature{
			name: pagefeat.BuiltinFeatureName(pagefeat.FeatureExtendedChecksums),
		})
	}
	for _, spec := range cfg.InnodbPageFeatures {
		requested = append(requested, requestedFeature{name: spec.Name, size: spec.Size})
	}

	if len(requested) == 0 {
		return pagefeat.NewEmptyPageFeatureSet(), nil
	}
	if cfg.InnodbPageFeatureSet == "" {
		return nil, errors.New("page features requested but page_feature_set is empty")
	}

	var needed int
	for _, r := range requested {
		size := r.size
		if f, ok := pagefeat.LookupBuiltin(r.name); ok && size == 0 {
			size = pagefeat.BuiltinFeatureSize(f)
		}
		needed += common.RoundReservedSize(size)
	}
	capacity := common.RoundReservedSize(cfg.InnodbReservedPageSize)
	if capacity == 0 {
		capacity = needed
	}
	if _, err := common.NewBlockSize(cfg.InnodbPageSize, capacity); err != nil {
		return nil, errors.Wrapf(err, "page features need %d reserved bytes", needed)
	}

	pfs, err := pagefeat.NewPageFeatureSet(cfg.InnodbPageFeatureSet, capacity, len(requested))
	if err != nil {
		return nil, err
	}
	for _, r := range requested {
		if !pfs.AddFeatureByName(r.name, r.size) {
			return nil, errors.Errorf("couldn't add page feature %s (size %d): %d of %d reserved bytes used",
				r.name, r.size, pfs.BytesUsed(), pfs.BytesManaged())
		}
	}
	return pfs, nil
}

func ensureKeyFile(path string) error {
	exists, err := util.PathExists(path)
	if err != nil {
		return err
	}
	if exists {
		logger.Infof("using existing master key file %s", path)
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), dirMode); err != nil {
		return err
	}
	key, err := manager.GenerateMasterKey()
	if err != nil {
		return errors.Wrap(err, "generating master key")
	}
	defer clear(key)
	if err := manager.SaveMasterKeyToFile(key, path); err != nil {
		return errors.Wrapf(err, "saving master key to %s", path)
	}
	logger.Infof("generated master key file %s", path)
	return nil
}
