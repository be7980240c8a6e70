package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Supported storage drivers.
const (
	DriverMongoDB = "mongodb"
	DriverRedis   = "redis"
	DriverBolt    = "bolt"
)

// Config defines the structure of the configuration file.
type Config struct {
	GitCommit               string        `yaml:"git_commit" envconfig:"BCAT_GIT_COMMIT"`
	GitTag                  string        `yaml:"git_tag" envconfig:"BCAT_GIT_TAG"`
	BuildTime               string        `yaml:"build_time" envconfig:"BCAT_BUILD_TIME"`
	IsProduction            bool          `yaml:"is_production" envconfig:"BCAT_IS_PRODUCTION"`
	LogLevel                zapcore.Level `yaml:"log_level" envconfig:"BCAT_LOG_LEVEL"`
	LogFolder               string        `yaml:"log_folder" envconfig:"BCAT_LOG_FOLDER"`
	LogMaxSize              int           `yaml:"log_max_size" envconfig:"BCAT_LOG_MAX_SIZE"`
	APIKey                  string        `yaml:"api_key" envconfig:"BCAT_API_KEY" json:"-"`
	OpsEndpointsEnable      bool          `yaml:"ops_endpoints_enable" envconfig:"BCAT_OPS_ENDPOINTS_ENABLE"`
	ProfilerEndpointsEnable bool          `yaml:"profiler_endpoints_enable" envconfig:"BCAT_PROFILER_ENDPOINTS_ENABLE"`
	SwaggerEnable           bool          `yaml:"swagger_enable" envconfig:"BCAT_SWAGGER_ENABLE"`
	Server                  ServerConfig  `yaml:"server"`
	Storage                 StorageConfig `yaml:"storage"`
	MongoDB                 MongoDBConfig `yaml:"mongodb"`
	Redis                   RedisConfig   `yaml:"redis"`
	BoltDB                  BoltDBConfig  `yaml:"boltdb"`
	Mirror                  MirrorConfig  `yaml:"mirror"`
}

type ServerConfig struct {
	Host            string        `yaml:"host" envconfig:"BCAT_SERVER_HOST"`
	Port            string        `yaml:"port" envconfig:"BCAT_SERVER_PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"BCAT_SERVER_READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"BCAT_SERVER_WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"BCAT_SERVER_SHUTDOWN_TIMEOUT"`
}

type StorageConfig struct {
	Driver string `yaml:"driver" envconfig:"BCAT_STORAGE_DRIVER"`
}

type MongoDBConfig struct {
	URI            string        `yaml:"uri" envconfig:"BCAT_MONGODB_URI" json:"-"`
	Database       string        `yaml:"database" envconfig:"BCAT_MONGODB_DATABASE"`
	Collection     string        `yaml:"collection" envconfig:"BCAT_MONGODB_COLLECTION"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" envconfig:"BCAT_MONGODB_CONNECT_TIMEOUT"`
}

type RedisConfig struct {
	Host          string        `yaml:"host" envconfig:"BCAT_REDIS_HOST"`
	Port          string        `yaml:"port" envconfig:"BCAT_REDIS_PORT"`
	DialTimeout   time.Duration `yaml:"dial_timeout" envconfig:"BCAT_REDIS_DIAL_TIMEOUT"`
	ReadTimeout   time.Duration `yaml:"read_timeout" envconfig:"BCAT_REDIS_READ_TIMEOUT"`
	WriteTimeout  time.Duration `yaml:"write_timeout" envconfig:"BCAT_REDIS_WRITE_TIMEOUT"`
	PoolSize      int           `yaml:"pool_size" envconfig:"BCAT_REDIS_POOL_SIZE"`
	PoolTimeout   time.Duration `yaml:"pool_timeout" envconfig:"BCAT_REDIS_POOL_TIMEOUT"`
	Username      string        `yaml:"username" envconfig:"BCAT_REDIS_USERNAME"`
	Password      string        `yaml:"password" envconfig:"BCAT_REDIS_PASSWORD" json:"-"`
	DatabaseIndex int           `yaml:"db_index" envconfig:"BCAT_REDIS_DATABASE_INDEX"`
}

type BoltDBConfig struct {
	FilePath   string        `yaml:"filepath" envconfig:"BCAT_BOLTDB_FILE_PATH"`
	Timeout    time.Duration `yaml:"timeout" envconfig:"BCAT_BOLTDB_TIMEOUT"`
	BucketName string        `yaml:"bucket_name" envconfig:"BCAT_BOLTDB_BUCKET_NAME"`
}

// MirrorConfig enables the replay of every mutation into a local boltdb file.
type MirrorConfig struct {
	Enabled bool         `yaml:"enabled" envconfig:"BCAT_MIRROR_ENABLED"`
	BoltDB  BoltDBConfig `yaml:"boltdb"`
}

// LoadConfigFile provides an instance of config structure for the all application.
func LoadConfigFile(configFile string) (*Config, error) {
	file, err := os.Open(configFile)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	cfg := &Config{}
	yd := yaml.NewDecoder(file)
	err = yd.Decode(cfg)

	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfigEnvs reads the environments variables and provides an instance of the App config.
func LoadConfigEnvs(prefix string, config *Config) error {
	return envconfig.Process(prefix, config)
}

// InitConfig setup defaults values for non provided parameters
// and configures build tags values to be used if provided.
func InitConfig(config *Config, gitCommit, gitTag, buildTime string) error {
	if len(gitCommit) != 0 {
		config.GitCommit = gitCommit
	}

	if len(gitTag) != 0 {
		config.GitTag = gitTag
	}

	if len(buildTime) != 0 {
		config.BuildTime = buildTime
	}

	if len(config.Server.Host) == 0 || len(config.Server.Port) == 0 {
		return errors.New("make sure to set valid server address and port in configuration file")
	}

	if len(config.APIKey) == 0 {
		return errors.New("make sure to set the api key used to authorize write operations")
	}

	if config.LogMaxSize <= 0 {
		config.LogMaxSize = 10
	}

	if len(config.Storage.Driver) == 0 {
		config.Storage.Driver = DriverMongoDB
	}

	switch config.Storage.Driver {
	case DriverMongoDB:
		if len(config.MongoDB.URI) == 0 || len(config.MongoDB.Database) == 0 || len(config.MongoDB.Collection) == 0 {
			return errors.New("make sure to set valid mongodb uri, database and collection in configuration file")
		}
	case DriverRedis:
		if len(config.Redis.Host) == 0 || len(config.Redis.Port) == 0 {
			return errors.New("make sure to set valid redis address and port in configuration file")
		}
	case DriverBolt:
		if len(config.BoltDB.FilePath) == 0 || len(config.BoltDB.BucketName) == 0 {
			return errors.New("make sure to set valid boltdb file path and bucket name in configuration file")
		}
	default:
		return fmt.Errorf("unsupported storage driver %q", config.Storage.Driver)
	}

	if config.Mirror.Enabled {
		if config.Storage.Driver == DriverBolt {
			return errors.New("mirror can not be enabled with the bolt storage driver")
		}
		if len(config.Redis.Host) == 0 || len(config.Redis.Port) == 0 {
			return errors.New("mirror requires valid redis address and port in configuration file")
		}
		if len(config.Mirror.BoltDB.FilePath) == 0 || len(config.Mirror.BoltDB.BucketName) == 0 {
			return errors.New("mirror requires valid boltdb file path and bucket name in configuration file")
		}
	}

	return nil
}

// LoadAndInitConfigs loads in order the configs from various predefined sources
// then build the App configuration data.
func LoadAndInitConfigs(gitCommit, gitTag, buildTime string) (*Config, error) {
	// Setup the yaml configuration from file.
	config, err := LoadConfigFile("./config.yml")
	if err != nil {
		return config, fmt.Errorf("failed to load configurations from file: %s", err)
	}

	// The env file is optional, secrets may come from the process environment.
	if err = godotenv.Load("./config.env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return config, fmt.Errorf("failed to set environment configurations: %s", err)
	}

	// Use environment variables with prefix `BCAT`.
	err = LoadConfigEnvs("BCAT", config)
	if err != nil {
		return config, fmt.Errorf("failed to load configurations from environment: %s", err)
	}

	err = InitConfig(config, gitCommit, gitTag, buildTime)
	if err != nil {
		return config, fmt.Errorf("failed to initialize configurations: %s", err)
	}
	return config, nil
}
