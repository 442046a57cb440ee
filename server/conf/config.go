package conf

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
	"github.com/zhukovaskychina/xmysql-tde/logger"
	"github.com/zhukovaskychina/xmysql-tde/server/common"
	"github.com/zhukovaskychina/xmysql-tde/server/innodb/crypto"
	"gopkg.in/ini.v1"
)

var ConfigPath string

type CommandLineArgs struct {
	ConfigPath string
}

/*
*
[mysqld]
datadir		= /var/lib/xmysql

[innodb]
page_size		= 16384
reserved_page_size	= 0
page_feature_set	= default
page_features		= audit:8
extended_checksums	= true
encryption.method	= aes-256-gcm
encryption.key_file	= keys/master.key

[logs]
log_error	= /var/log/xmysql/error.log
log_infos	= /var/log/xmysql/xmysql.log
log_level	= info
*/
type Cfg struct {
	Raw     *ini.File
	DataDir string

	// logs
	LogError string `default:"/var/log/mysql/error.log" yaml:"log_error" json:"log_error,omitempty"`
	LogInfos string `default:"/var/log/mysql/mysql.log" yaml:"log_infos" json:"log_infos,omitempty"`
	LogLevel string `default:"info" yaml:"log_level" json:"log_level,omitempty"`

	// innodb
	InnodbPageSize          int           `default:"16384" yaml:"innodb_page_size" json:"innodb_page_size,omitempty"`
	InnodbReservedPageSize  int           `default:"0" yaml:"innodb_reserved_page_size" json:"innodb_reserved_page_size,omitempty"`
	InnodbPageFeatureSet    string        `default:"default" yaml:"innodb_page_feature_set" json:"innodb_page_feature_set,omitempty"`
	InnodbPageFeatures      []FeatureSpec `yaml:"innodb_page_features" json:"innodb_page_features,omitempty"`
	InnodbExtendedChecksums bool          `default:"false" yaml:"innodb_extended_checksums" json:"innodb_extended_checksums,omitempty"`
	InnodbEncryption        InnodbEncryptionConfig
}

type InnodbEncryptionConfig struct {
	Method    string `default:"none" yaml:"method" json:"method,omitempty"`
	MasterKey string `default:"" yaml:"master_key" json:"master_key,omitempty"`
	KeyFile   string `default:"" yaml:"key_file" json:"key_file,omitempty"`
}

// FeatureSpec 用户自定义页面特性 name:size
type FeatureSpec struct {
	Name string
	Size int
}

func NewCfg() *Cfg {
	return &Cfg{
		Raw:     ini.Empty(),
		DataDir: "data",
		// Logs 默认配置
		LogError: "/var/log/mysql/error.log",
		LogInfos: "/var/log/mysql/mysql.log",
		LogLevel: "info",
		// InnoDB 默认配置
		InnodbPageSize:       common.DefaultBlockSize,
		InnodbPageFeatureSet: "default",
		InnodbEncryption: InnodbEncryptionConfig{
			Method: "none",
		},
	}
}

// Load reads the configuration file named by args, or conf/my.ini. Files
// ending in .toml are parsed as TOML; everything else as ini. A missing
// file leaves the defaults in place.
func (cfg *Cfg) Load(args *CommandLineArgs) (*Cfg, error) {
	setHomePath(args)

	configFile := "conf/my.ini"
	if args.ConfigPath != "" {
		configFile = args.ConfigPath
	}
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		logger.Debugf("配置文件不存在: %s，使用默认配置", configFile)
		return cfg, cfg.Validate()
	}

	var err error
	if strings.EqualFold(filepath.Ext(configFile), ".toml") {
		err = cfg.loadToml(configFile)
	} else {
		err = cfg.loadIni(configFile)
	}
	if err != nil {
		return nil, err
	}
	logger.Debugf("成功加载配置文件: %s", configFile)
	return cfg, cfg.Validate()
}

func setHomePath(args *CommandLineArgs) {
	if args.ConfigPath != "" {
		ConfigPath = args.ConfigPath
		return
	}

	ConfigPath, _ = filepath.Abs(".")
}

func (cfg *Cfg) loadIni(configFile string) error {
	iniFile, err := ini.Load(configFile)
	if err != nil {
		return errors.Wrapf(err, "解析配置文件失败: %s", configFile)
	}
	return cfg.LoadIni(iniFile)
}

// LoadIni applies an already parsed ini file.
func (cfg *Cfg) LoadIni(iniFile *ini.File) error {
	cfg.Raw = iniFile
	cfg.parseMysqldCfg(cfg.Raw.Section("mysqld"))
	if err := cfg.parseInnodbCfg(cfg.Raw.Section("innodb")); err != nil {
		return err
	}
	cfg.parseLogsCfg(cfg.Raw.Section("logs"))
	return nil
}

func (cfg *Cfg) parseMysqldCfg(section *ini.Section) *Cfg {
	dataDir, err := valueAsString(section, "datadir", cfg.DataDir)
	if err == nil {
		cfg.DataDir = dataDir
	}
	return cfg
}

func (cfg *Cfg) parseInnodbCfg(section *ini.Section) error {
	if section == nil {
		return nil
	}

	// Parse page geometry
	cfg.InnodbPageSize = section.Key("page_size").MustInt(cfg.InnodbPageSize)
	cfg.InnodbReservedPageSize = section.Key("reserved_page_size").MustInt(cfg.InnodbReservedPageSize)

	// Parse page features
	if section.HasKey("page_feature_set") {
		cfg.InnodbPageFeatureSet = strings.TrimSpace(section.Key("page_feature_set").String())
	}
	if section.HasKey("page_features") {
		specs, err := ParseFeatureSpecs(section.Key("page_features").Strings(","))
		if err != nil {
			return err
		}
		cfg.InnodbPageFeatures = specs
	}
	cfg.InnodbExtendedChecksums = section.Key("extended_checksums").MustBool(cfg.InnodbExtendedChecksums)

	// Parse encryption settings
	method, err := valueAsString(section, "encryption.method", cfg.InnodbEncryption.Method)
	if err == nil {
		cfg.InnodbEncryption.Method = method
	}
	masterKey, err := valueAsString(section, "encryption.master_key", cfg.InnodbEncryption.MasterKey)
	if err == nil {
		cfg.InnodbEncryption.MasterKey = masterKey
	}
	keyFile, err := valueAsString(section, "encryption.key_file", cfg.InnodbEncryption.KeyFile)
	if err == nil {
		cfg.InnodbEncryption.KeyFile = keyFile
	}
	return nil
}

func (cfg *Cfg) parseLogsCfg(section *ini.Section) *Cfg {
	if section == nil {
		return cfg
	}

	// Parse log error
	logError, err := valueAsString(section, "log_error", cfg.LogError)
	if err == nil {
		cfg.LogError = logError
	}

	// Parse log infos
	logInfos, err := valueAsString(section, "log_infos", cfg.LogInfos)
	if err == nil {
		cfg.LogInfos = logInfos
	}

	// Parse log level
	logLevel, err := valueAsString(section, "log_level", cfg.LogLevel)
	if err == nil {
		cfg.setLogLevel(logLevel)
	}
	return cfg
}

func (cfg *Cfg) setLogLevel(logLevel string) {
	cfg.LogLevel = strings.ToLower(logLevel)
	// 验证日志级别是否有效
	validLevels := []string{"debug", "info", "warn", "error", "fatal", "panic"}
	for _, level := range validLevels {
		if cfg.LogLevel == level {
			return
		}
	}
	logger.Debugf("警告: 无效的日志级别 '%s', 使用默认级别 'info'", logLevel)
	cfg.LogLevel = "info"
}

// loadToml reads the same settings from a TOML file:
//
//	[mysqld]
//	datadir = "/var/lib/xmysql"
//	[innodb]
//	page_features = ["audit:8"]
//	[innodb.encryption]
//	method = "aes-256-gcm"
func (cfg *Cfg) loadToml(configFile string) error {
	tree, err := toml.LoadFile(configFile)
	if err != nil {
		return errors.Wrapf(err, "解析配置文件失败: %s", configFile)
	}
	return cfg.LoadToml(tree)
}

// LoadToml applies an already parsed TOML tree.
func (cfg *Cfg) LoadToml(tree *toml.Tree) error {
	cfg.DataDir = tomlString(tree, "mysqld.datadir", cfg.DataDir)

	cfg.InnodbPageSize = tomlInt(tree, "innodb.page_size", cfg.InnodbPageSize)
	cfg.InnodbReservedPageSize = tomlInt(tree, "innodb.reserved_page_size", cfg.InnodbReservedPageSize)
	if tree.Has("innodb.page_feature_set") {
		cfg.InnodbPageFeatureSet = tomlString(tree, "innodb.page_feature_set", "")
	}
	if raw, ok := tree.Get("innodb.page_features").([]interface{}); ok {
		items := make([]string, 0, len(raw))
		for _, item := range raw {
			s, ok := item.(string)
			if !ok {
				return errors.Errorf("innodb.page_features: %v is not a string", item)
			}
			items = append(items, s)
		}
		specs, err := ParseFeatureSpecs(items)
		if err != nil {
			return err
		}
		cfg.InnodbPageFeatures = specs
	}
	if v, ok := tree.Get("innodb.extended_checksums").(bool); ok {
		cfg.InnodbExtendedChecksums = v
	}

	cfg.InnodbEncryption.Method = tomlString(tree, "innodb.encryption.method", cfg.InnodbEncryption.Method)
	cfg.InnodbEncryption.MasterKey = tomlString(tree, "innodb.encryption.master_key", cfg.InnodbEncryption.MasterKey)
	cfg.InnodbEncryption.KeyFile = tomlString(tree, "innodb.encryption.key_file", cfg.InnodbEncryption.KeyFile)

	cfg.LogError = tomlString(tree, "logs.log_error", cfg.LogError)
	cfg.LogInfos = tomlString(tree, "logs.log_infos", cfg.LogInfos)
	cfg.setLogLevel(tomlString(tree, "logs.log_level", cfg.LogLevel))
	return nil
}

func tomlString(tree *toml.Tree, key, defaultValue string) string {
	if v, ok := tree.Get(key).(string); ok && v != "" {
		return v
	}
	return defaultValue
}

func tomlInt(tree *toml.Tree, key string, defaultValue int) int {
	if v, ok := tree.Get(key).(int64); ok {
		return int(v)
	}
	return defaultValue
}

// ParseFeatureSpecs parses "name:size" items. Blank items are skipped.
func ParseFeatureSpecs(items []string) ([]FeatureSpec, error) {
	var specs []FeatureSpec
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		name, sizeStr, ok := strings.Cut(item, ":")
		if !ok {
			return nil, errors.Errorf("page feature %q: want name:size", item)
		}
		size, err := strconv.Atoi(strings.TrimSpace(sizeStr))
		if err != nil || size < 0 {
			return nil, errors.Errorf("page feature %q: bad size", item)
		}
		specs = append(specs, FeatureSpec{Name: strings.TrimSpace(name), Size: size})
	}
	return specs, nil
}

// Validate checks the settings that must be right before a cluster is
// created or opened.
func (cfg *Cfg) Validate() error {
	if _, err := common.NewBlockSize(cfg.InnodbPageSize, cfg.InnodbReservedPageSize); err != nil {
		return err
	}
	if _, err := cfg.EncryptionMethod(); err != nil {
		return err
	}
	if cfg.DataDir == "" {
		return errors.New("datadir must be set")
	}
	return nil
}

// EncryptionMethod 解析后的加密算法
func (cfg *Cfg) EncryptionMethod() (crypto.EncryptionMethod, error) {
	return crypto.ParseEncryptionMethod(cfg.InnodbEncryption.Method)
}

func valueAsString(section *ini.Section, keyName string, defaultValue string) (value string, err error) {
	if section == nil {
		return defaultValue, nil
	}
	value = section.Key(keyName).MustString(defaultValue)
	if value == "" {
		value = defaultValue
	}
	return value, nil
}

// GetString 获取配置项的字符串值
func (cfg *Cfg) GetString(key string) string {
	parts := strings.Split(key, ".")
	if len(parts) < 2 {
		return ""
	}

	section := cfg.Raw.Section(parts[0])
	if section == nil {
		return ""
	}

	value, err := valueAsString(section, strings.Join(parts[1:], "."), "")
	if err != nil {
		return ""
	}
	return value
}

// GetInt 获取配置项的整数值
func (cfg *Cfg) GetInt(key string) int {
	parts := strings.Split(key, ".")
	if len(parts) < 2 {
		return 0
	}

	section := cfg.Raw.Section(parts[0])
	if section == nil {
		return 0
	}

	return section.Key(strings.Join(parts[1:], ".")).MustInt(0)
}
