package pagefeat

import (
	"path/filepath"

	"github.com/juju/errors"
	"github.com/zhukovaskychina/xmysql-tde/logger"
)

// CatalogDir is the directory under the data directory holding feature
// catalogs.
const CatalogDir = "pg_pagefeat"

// CatalogPath returns the catalog file of the named set.
func CatalogPath(dataDir, name string) string {
	return filepath.Join(dataDir, CatalogDir, name)
}

// ClusterPageFeatureInit loads the feature set a cluster was created with.
// An empty name means the cluster has no page features.
func ClusterPageFeatureInit(dataDir, name string) (*PageFeatureSet, error) {
	if name == "" {
		logger.Debugf("cluster has no page features")
		return NewEmptyPageFeatureSet(), nil
	}
	pfs, err := ReadPageFeatureSet(CatalogPath(dataDir, name))
	if err != nil {
		return nil, errors.Annotatef(err, "loading page feature set %q", name)
	}
	logger.Infof("page feature set %s: %d features, %d reserved bytes", name, pfs.Count(), pfs.BytesUsed())
	return pfs, nil
}
