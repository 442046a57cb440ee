package crypto

import "github.com/pkg/errors"

// 加密相关错误
var (
	ErrUnsupportedMethod    = errors.New("unsupported encryption method")
	ErrInvalidKeyLength     = errors.New("invalid encryption key length")
	ErrAlreadyInitialized   = errors.New("buffer encryption already initialized")
	ErrNotInitialized       = errors.New("buffer encryption not initialized")
	ErrNoEncryptionFeature  = errors.New("encryption_tags page feature not enabled")
	ErrFeatureSlotTooSmall  = errors.New("encryption_tags slot too small for method")
	ErrInvalidPageSize      = errors.New("page length doesn't match configured page size")
	ErrInvalidLSN           = errors.New("permanent page has no LSN")
	ErrAuthenticationFailed = errors.New("page authentication failed")
	ErrEncryptedLength      = errors.New("encrypted length doesn't match page region")
	ErrIVCounterExhausted   = errors.New("IV counter exhausted")
	ErrWrongDirection       = errors.New("cipher context used in the wrong direction")
)
