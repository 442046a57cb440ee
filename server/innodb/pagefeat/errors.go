package pagefeat

import "github.com/juju/errors"

// 页面特性相关错误
var (
	ErrInvalidCapacity        = errors.New("invalid page feature set capacity")
	ErrCatalogExists          = errors.New("page feature catalog already exists")
	ErrCatalogCorrupted       = errors.New("page feature catalog corrupted")
	ErrInconsistentFeatureSet = errors.New("page feature set doesn't match computed totals")
)
