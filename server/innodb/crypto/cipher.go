package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/crypto/chacha20poly1305"
)

// IVSize is the width of the IV stored in every encrypted page.
const IVSize = 16

// AuthTagSize is the AEAD tag width for every supported method.
const AuthTagSize = 16

// EncryptionMethod 页面加密算法
type EncryptionMethod int

const (
	EncryptionDisabled EncryptionMethod = iota
	EncryptionAES128GCM
	EncryptionAES192GCM
	EncryptionAES256GCM
	EncryptionChaCha20Poly1305
)

var methodNames = map[EncryptionMethod]string{
	EncryptionDisabled:         "disabled",
	EncryptionAES128GCM:        "aes-128-gcm",
	EncryptionAES192GCM:        "aes-192-gcm",
	EncryptionAES256GCM:        "aes-256-gcm",
	EncryptionChaCha20Poly1305: "chacha20-poly1305",
}

func (m EncryptionMethod) String() string {
	if name, ok := methodNames[m]; ok {
		return name
	}
	return "unknown"
}

// ParseEncryptionMethod resolves a configured method name. An empty string
// and "none" mean disabled.
func ParseEncryptionMethod(s string) (EncryptionMethod, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "none" {
		return EncryptionDisabled, nil
	}
	for m, name := range methodNames {
		if name == s {
			return m, nil
		}
	}
	return EncryptionDisabled, errors.Wrapf(ErrUnsupportedMethod, "%q", s)
}

// KeyLength 密钥字节数，disabled 为 0
func (m EncryptionMethod) KeyLength() int {
	switch m {
	case EncryptionAES128GCM:
		return 16
	case EncryptionAES192GCM:
		return 24
	case EncryptionAES256GCM, EncryptionChaCha20Poly1305:
		return chacha20poly1305.KeySize
	default:
		return 0
	}
}

// TagSize 认证标签字节数
func (m EncryptionMethod) TagSize() int {
	if m == EncryptionDisabled {
		return 0
	}
	return AuthTagSize
}

// SizeOfEncryptionFeature is the encryption_tags slot a cluster needs for
// method m: the IV followed by the tag.
func SizeOfEncryptionFeature(m EncryptionMethod) int {
	if m == EncryptionDisabled {
		return 0
	}
	return IVSize + m.TagSize()
}

// CipherCtx is one long-lived AEAD handle bound to a key, used either for
// encryption or for decryption.
type CipherCtx struct {
	method  EncryptionMethod
	aead    cipher.AEAD
	encrypt bool
}

// NewCipherCtx creates a context for method with key.
func NewCipherCtx(method EncryptionMethod, key []byte, encrypt bool) (*CipherCtx, error) {
	if method == EncryptionDisabled || method.KeyLength() == 0 {
		return nil, errors.Wrapf(ErrUnsupportedMethod, "method %d", method)
	}
	if len(key) != method.KeyLength() {
		return nil, errors.Wrapf(ErrInvalidKeyLength, "%s needs %d bytes, got %d", method, method.KeyLength(), len(key))
	}

	var (
		aead cipher.AEAD
		err  error
	)
	switch method {
	case EncryptionChaCha20Poly1305:
		aead, err = chacha20poly1305.New(key)
	default:
		var block cipher.Block
		if block, err = aes.NewCipher(key); err == nil {
			aead, err = cipher.NewGCMWithNonceSize(block, IVSize)
		}
	}
	if err != nil {
		return nil, errors.Wrapf(err, "cannot initialize %s context", method)
	}
	return &CipherCtx{method: method, aead: aead, encrypt: encrypt}, nil
}

// Method returns the algorithm the context is bound to.
func (c *CipherCtx) Method() EncryptionMethod { return c.method }

// nonce maps the 16-byte page IV to the nonce the AEAD takes. ChaCha20 only
// takes 12 bytes; the dropped high bytes are always zero.
func (c *CipherCtx) nonce(iv []byte) []byte {
	if c.method == EncryptionChaCha20Poly1305 {
		return iv[IVSize-chacha20poly1305.NonceSize:]
	}
	return iv
}

// Seal appends ciphertext||tag of plaintext to dst.
func (c *CipherCtx) Seal(dst, iv, plaintext, aad []byte) ([]byte, error) {
	if !c.encrypt {
		return nil, ErrWrongDirection
	}
	if len(iv) != IVSize {
		return nil, errors.Errorf("IV must be %d bytes, got %d", IVSize, len(iv))
	}
	return c.aead.Seal(dst, c.nonce(iv), plaintext, aad), nil
}

// Open authenticates and decrypts ciphertext||tag, appending the plaintext
// to dst.
func (c *CipherCtx) Open(dst, iv, sealed, aad []byte) ([]byte, error) {
	if c.encrypt {
		return nil, ErrWrongDirection
	}
	if len(iv) != IVSize {
		return nil, errors.Errorf("IV must be %d bytes, got %d", IVSize, len(iv))
	}
	out, err := c.aead.Open(dst, c.nonce(iv), sealed, aad)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}
	return out, nil
}
