package initdb

import (
	"github.com/pkg/errors"
	"github.com/zhukovaskychina/xmysql-tde/logger"
	"github.com/zhukovaskychina/xmysql-tde/server/common"
	"github.com/zhukovaskychina/xmysql-tde/server/conf"
	"github.com/zhukovaskychina/xmysql-tde/server/innodb/crypto"
	"github.com/zhukovaskychina/xmysql-tde/server/innodb/manager"
	"github.com/zhukovaskychina/xmysql-tde/server/innodb/pagefeat"
	"github.com/zhukovaskychina/xmysql-tde/server/innodb/storage/store/blocks"
	"github.com/zhukovaskychina/xmysql-tde/util"
)

// Cluster is the per-process state of an opened data directory.
type Cluster struct {
	Features   *pagefeat.PageFeatureSet
	Control    *manager.ControlFile
	Keys       *manager.KeyManager
	Encryption *crypto.BufferEncryption
	Codec      *blocks.PageCodec
}

// OpenCluster loads everything a process needs before touching pages. Any
// error means the process must not start.
func OpenCluster(cfg *conf.Cfg) (*Cluster, error) {
	method, err := cfg.EncryptionMethod()
	if err != nil {
		return nil, err
	}

	features, err := pagefeat.ClusterPageFeatureInit(cfg.DataDir, cfg.InnodbPageFeatureSet)
	if err != nil {
		return nil, err
	}
	if _, err := common.NewBlockSize(cfg.InnodbPageSize, features.BytesUsed()); err != nil {
		return nil, errors.Wrapf(err, "page feature set %s doesn't fit a %d byte page", features.Name(), cfg.InnodbPageSize)
	}
	for name, enabled := range features.ConfigOptions() {
		logger.Debugf("page feature %s = %v", name, enabled)
	}
	logger.Debugf("page feature bitmap %s", util.FormatBitmap16(features.Bitmap()))

	control, err := manager.OpenControlFile(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	keys, err := manager.NewKeyManager(manager.KeySettings{
		Method:       method,
		MasterKeyHex: cfg.InnodbEncryption.MasterKey,
		KeyFile:      KeyFilePath(cfg),
	})
	if err != nil {
		return nil, err
	}

	enc := crypto.NewBufferEncryption(features, cfg.InnodbPageSize, crypto.NewIVAllocator(control))
	var key []byte
	if method != crypto.EncryptionDisabled {
		relKey, err := keys.GetKey(manager.KeyIDRelation)
		if err != nil {
			keys.Close()
			return nil, err
		}
		key = relKey.Key
	}
	if err := enc.Initialize(method, key); err != nil {
		keys.Close()
		return nil, errors.Wrap(err, "initializing page encryption")
	}

	return &Cluster{
		Features:   features,
		Control:    control,
		Keys:       keys,
		Encryption: enc,
		Codec:      blocks.NewPageCodec(features, enc),
	}, nil
}

// Close 清理密钥
func (c *Cluster) Close() error {
	return c.Keys.Close()
}
