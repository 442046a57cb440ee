package conf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zhukovaskychina/xmysql-tde/server/innodb/crypto"
)

const iniConfig = `
[mysqld]
datadir = /tmp/xmysql-data

[innodb]
page_size = 8192
reserved_page_size = 128
page_feature_set = tde
page_features = audit:8, lineage:16
extended_checksums = true
encryption.method = AES-256-GCM
encryption.key_file = keys/master.key

[logs]
log_level = DEBUG
`

const tomlConfig = `
[mysqld]
datadir = "/tmp/xmysql-data"

[innodb]
page_size = 8192
reserved_page_size = 128
page_feature_set = "tde"
page_features = ["audit:8", "lineage:16"]
extended_checksums = true

[innodb.encryption]
method = "chacha20-poly1305"
master_key = "00112233445566778899aabbccddeeff00112233445566778899aabbccddeeff"

[logs]
log_level = "warn"
`

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadIni(t *testing.T) {
	cfg, err := NewCfg().Load(&CommandLineArgs{ConfigPath: writeConfig(t, "my.ini", iniConfig)})
	require.NoError(t, err)

	assert.Equal(t, "/tmp/xmysql-data", cfg.DataDir)
	assert.Equal(t, 8192, cfg.InnodbPageSize)
	assert.Equal(t, 128, cfg.InnodbReservedPageSize)
	assert.Equal(t, "tde", cfg.InnodbPageFeatureSet)
	assert.Equal(t, []FeatureSpec{{"audit", 8}, {"lineage", 16}}, cfg.InnodbPageFeatures)
	assert.True(t, cfg.InnodbExtendedChecksums)
	assert.Equal(t, "keys/master.key", cfg.InnodbEncryption.KeyFile)
	assert.Equal(t, "debug", cfg.LogLevel)

	method, err := cfg.EncryptionMethod()
	require.NoError(t, err)
	assert.Equal(t, crypto.EncryptionAES256GCM, method)

	assert.Equal(t, "tde", cfg.GetString("innodb.page_feature_set"))
	assert.Equal(t, 8192, cfg.GetInt("innodb.page_size"))
}

func TestLoadToml(t *testing.T) {
	cfg, err := NewCfg().Load(&CommandLineArgs{ConfigPath: writeConfig(t, "my.toml", tomlConfig)})
	require.NoError(t, err)

	assert.Equal(t, "/tmp/xmysql-data", cfg.DataDir)
	assert.Equal(t, 8192, cfg.InnodbPageSize)
	assert.Equal(t, 128, cfg.InnodbReservedPageSize)
	assert.Equal(t, "tde", cfg.InnodbPageFeatureSet)
	assert.Equal(t, []FeatureSpec{{"audit", 8}, {"lineage", 16}}, cfg.InnodbPageFeatures)
	assert.True(t, cfg.InnodbExtendedChecksums)
	assert.Len(t, cfg.InnodbEncryption.MasterKey, 64)
	assert.Equal(t, "warn", cfg.LogLevel)

	method, err := cfg.EncryptionMethod()
	require.NoError(t, err)
	assert.Equal(t, crypto.EncryptionChaCha20Poly1305, method)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := NewCfg().Load(&CommandLineArgs{ConfigPath: filepath.Join(t.TempDir(), "missing.ini")})
	require.NoError(t, err)
	assert.Equal(t, 16384, cfg.InnodbPageSize)
	assert.Equal(t, 0, cfg.InnodbReservedPageSize)
	assert.Equal(t, "default", cfg.InnodbPageFeatureSet)
	assert.Empty(t, cfg.InnodbPageFeatures)
	assert.Equal(t, "info", cfg.LogLevel)

	method, err := cfg.EncryptionMethod()
	require.NoError(t, err)
	assert.Equal(t, crypto.EncryptionDisabled, method)
}

func TestLoadInvalid(t *testing.T) {
	cases := map[string]string{
		"page size":     "[innodb]\npage_size = 3000\n",
		"reserved size": "[innodb]\nreserved_page_size = 512\n",
		"method":        "[innodb]\nencryption.method = rot13\n",
		"feature spec":  "[innodb]\npage_features = audit\n",
		"feature size":  "[innodb]\npage_features = audit:x\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewCfg().Load(&CommandLineArgs{ConfigPath: writeConfig(t, "my.ini", content)})
			assert.Error(t, err)
		})
	}
}

func TestInvalidLogLevel(t *testing.T) {
	cfg, err := NewCfg().Load(&CommandLineArgs{ConfigPath: writeConfig(t, "my.ini", "[logs]\nlog_level = loud\n")})
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestParseFeatureSpecs(t *testing.T) {
	specs, err := ParseFeatureSpecs([]string{" audit : 5 ", "", "encryption_tags:0"})
	require.NoError(t, err)
	assert.Equal(t, []FeatureSpec{{"audit", 5}, {"encryption_tags", 0}}, specs)

	_, err = ParseFeatureSpecs([]string{"audit:-1"})
	assert.Error(t, err)
}
