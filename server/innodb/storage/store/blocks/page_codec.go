package blocks

import (
	"github.com/pkg/errors"
	"github.com/zhukovaskychina/xmysql-tde/server/innodb/crypto"
	"github.com/zhukovaskychina/xmysql-tde/server/innodb/pagefeat"
	"github.com/zhukovaskychina/xmysql-tde/server/innodb/storage/store/pages"
)

// PageCodec turns an in-memory page into its on-disk form and back,
// applying every enabled page feature.
//
// Write order: stamp features, checksum, encrypt. Read order is the reverse.
type PageCodec struct {
	features *pagefeat.PageFeatureSet
	enc      *crypto.BufferEncryption
}

// NewPageCodec enc may be nil when the cluster is not encrypted.
func NewPageCodec(features *pagefeat.PageFeatureSet, enc *crypto.BufferEncryption) *PageCodec {
	return &PageCodec{features: features, enc: enc}
}

// Features 当前集群的页面特性集合
func (c *PageCodec) Features() *pagefeat.PageFeatureSet { return c.features }

func (c *PageCodec) encrypted() bool {
	return c.enc != nil && c.enc.Enabled()
}

// Encode prepares page for writing as block blkno of file fileno.
func (c *PageCodec) Encode(page []byte, permanent bool, blkno, fileno uint32) error {
	p := pages.Page(page)
	pages.StampFeatures(p, c.features)

	if c.features.HasFeature(pagefeat.FeatureExtendedChecksums) {
		if err := pages.SetExtendedChecksum(p, c.features, blkno); err != nil {
			return errors.Wrapf(err, "checksum page %d", blkno)
		}
	}
	if c.encrypted() {
		if err := c.enc.EncryptPage(page, permanent, blkno, fileno); err != nil {
			return err
		}
	}
	return nil
}

// Decode validates and decrypts a page read from disk. All-zero pages were
// never written and are returned untouched; anything else goes through the
// full feature, tag and checksum checks.
func (c *PageCodec) Decode(page []byte, permanent bool, blkno, fileno uint32) error {
	p := pages.Page(page)
	if p.IsNew() {
		return nil
	}
	if err := pages.CheckFeatures(p, c.features); err != nil {
		return errors.Wrapf(err, "page %d of file %d has bitmap %#x, cluster has %#x",
			blkno, fileno, p.Features(), c.features.Bitmap())
	}

	if c.encrypted() {
		if err := c.enc.DecryptPage(page, permanent, blkno, fileno); err != nil {
			return err
		}
	}
	if c.features.HasFeature(pagefeat.FeatureExtendedChecksums) {
		if err := pages.VerifyExtendedChecksum(p, c.features, blkno); err != nil {
			return errors.Wrapf(err, "page %d of file %d", blkno, fileno)
		}
	}
	return nil
}
