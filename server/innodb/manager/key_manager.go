package manager

import (
	"crypto/rand"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/zhukovaskychina/xmysql-tde/logger"
	"github.com/zhukovaskychina/xmysql-tde/server/innodb/crypto"
	"github.com/zhukovaskychina/xmysql-tde/util"
	"golang.org/x/crypto/hkdf"
)

// MasterKeySize 主密钥长度
const MasterKeySize = 32

// KeyID names a derived key.
type KeyID int

const (
	// KeyIDRelation encrypts relation pages.
	KeyIDRelation KeyID = iota
	// KeyIDWAL is reserved for log encryption.
	KeyIDWAL
)

func (id KeyID) String() string {
	switch id {
	case KeyIDRelation:
		return "relation"
	case KeyIDWAL:
		return "wal"
	default:
		return fmt.Sprintf("key-%d", int(id))
	}
}

// CryptoKey 派生出来的对称密钥
type CryptoKey struct {
	ID  KeyID
	Key []byte
}

// KeySettings 密钥配置
type KeySettings struct {
	Method       crypto.EncryptionMethod
	MasterKeyHex string // 十六进制主密钥，优先于 KeyFile
	KeyFile      string
}

// KeyManager hands out per-purpose keys derived from the cluster master key.
type KeyManager struct {
	mu sync.RWMutex

	// 主密钥
	masterKey []byte
	method    crypto.EncryptionMethod

	// key_id -> 派生密钥
	keys   map[KeyID]*CryptoKey
	closed bool
}

// NewKeyManager loads the master key named by settings. With encryption
// disabled no key is needed and the manager hands out nothing.
func NewKeyManager(settings KeySettings) (*KeyManager, error) {
	km := &KeyManager{
		method: settings.Method,
		keys:   make(map[KeyID]*CryptoKey),
	}
	if settings.Method == crypto.EncryptionDisabled {
		return km, nil
	}

	var err error
	switch {
	case settings.MasterKeyHex != "":
		km.masterKey, err = decodeMasterKey([]byte(settings.MasterKeyHex))
	case settings.KeyFile != "":
		km.masterKey, err = LoadMasterKeyFromFile(settings.KeyFile)
	default:
		err = ErrNoMasterKey
	}
	if err != nil {
		return nil, errors.Wrap(err, "loading master key")
	}
	logger.Debugf("key manager ready: method %s", settings.Method)
	return km, nil
}

// NewKeyManagerWithKey builds a manager around an in-memory master key.
func NewKeyManagerWithKey(method crypto.EncryptionMethod, masterKey []byte) (*KeyManager, error) {
	if len(masterKey) != MasterKeySize {
		return nil, ErrInvalidKey
	}
	key := make([]byte, MasterKeySize)
	copy(key, masterKey)
	return &KeyManager{
		masterKey: key,
		method:    method,
		keys:      make(map[KeyID]*CryptoKey),
	}, nil
}

// GetKey returns the key for id, deriving it on first use. Keys are sized
// for the manager's encryption method.
func (km *KeyManager) GetKey(id KeyID) (*CryptoKey, error) {
	km.mu.RLock()
	if km.closed {
		km.mu.RUnlock()
		return nil, ErrManagerClosed
	}
	if key, ok := km.keys[id]; ok {
		km.mu.RUnlock()
		return key, nil
	}
	km.mu.RUnlock()

	km.mu.Lock()
	defer km.mu.Unlock()

	if km.closed {
		return nil, ErrManagerClosed
	}
	if key, ok := km.keys[id]; ok {
		return key, nil
	}
	if km.method == crypto.EncryptionDisabled || len(km.masterKey) == 0 {
		return nil, errors.Wrapf(ErrKeyNotFound, "%s key", id)
	}

	derived, err := DeriveKey(km.masterKey, nil, []byte("xmysql-tde:key:"+id.String()), km.method.KeyLength())
	if err != nil {
		return nil, err
	}
	key := &CryptoKey{ID: id, Key: derived}
	km.keys[id] = key
	return key, nil
}

// Close 清零所有密钥
func (km *KeyManager) Close() error {
	km.mu.Lock()
	defer km.mu.Unlock()

	for id, key := range km.keys {
		clear(key.Key)
		delete(km.keys, id)
	}
	clear(km.masterKey)
	km.closed = true
	return nil
}

// DeriveKey derives a key using HKDF-SHA-512.
func DeriveKey(secret, salt, info []byte, length int) ([]byte, error) {
	if len(salt) == 0 {
		salt = make([]byte, sha512.Size)
	}

	reader := hkdf.New(sha512.New, secret, salt, info)
	key := make([]byte, length)

	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, errors.Wrap(err, "failed to derive key")
	}
	return key, nil
}

// GenerateMasterKey generates a new random 256-bit master key.
func GenerateMasterKey() ([]byte, error) {
	key := make([]byte, MasterKeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, err
	}
	return key, nil
}

// LoadMasterKeyFromFile loads a master key from a file holding either the
// raw 32 bytes or 64 hex characters.
func LoadMasterKeyFromFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(ErrKeyFileNotFound, path)
		}
		return nil, err
	}
	defer clear(data)

	if len(data) == MasterKeySize {
		key := make([]byte, MasterKeySize)
		copy(key, data)
		return key, nil
	}
	return decodeMasterKey(data)
}

func decodeMasterKey(data []byte) ([]byte, error) {
	trimmed := []byte(strings.TrimSpace(string(data)))
	switch len(trimmed) {
	case MasterKeySize:
		key := make([]byte, MasterKeySize)
		copy(key, trimmed)
		return key, nil
	case MasterKeySize * 2:
		key := make([]byte, MasterKeySize)
		if _, err := hex.Decode(key, trimmed); err != nil {
			return nil, ErrInvalidKeyFormat
		}
		return key, nil
	default:
		return nil, ErrInvalidKeyFormat
	}
}

// SaveMasterKeyToFile writes key in hex to a new file; an existing key file
// is never overwritten.
func SaveMasterKeyToFile(key []byte, path string) error {
	if len(key) != MasterKeySize {
		return ErrInvalidKey
	}
	return util.WriteFileExclusive(path, []byte(hex.EncodeToString(key)), 0600)
}
