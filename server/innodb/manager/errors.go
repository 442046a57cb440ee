package manager

import "github.com/pkg/errors"

// 密钥管理器错误
var (
	ErrInvalidKey       = errors.New("invalid master key: must be 32 bytes")
	ErrInvalidKeyFormat = errors.New("invalid key format: must be 32 bytes or 64 hex chars")
	ErrKeyFileNotFound  = errors.New("master key file not found")
	ErrNoMasterKey      = errors.New("encryption enabled but no master key configured")
	ErrKeyNotFound      = errors.New("encryption key not found")
	ErrManagerClosed    = errors.New("key manager closed")
)

// 控制文件错误
var (
	ErrControlFileCorrupted = errors.New("IV control file corrupted")
	ErrControlFileExists    = errors.New("IV control file already exists")
	ErrInvalidRecord        = errors.New("invalid IV counter record")
)
