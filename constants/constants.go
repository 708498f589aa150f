package constants

import (
	"errors"
	"time"
)

// viper keys
const (
	ConfigFolder  = "CONFIG_FOLDER"
	LogFolder     = "LOG_FOLDER"
	LogLevel      = "LOG_LEVEL"
	EncryptionKey = "ENCRYPTION_KEY"
	CompressState = "COMPRESS_STATE"
	EnvPrefix     = "AIRLAKE"
)

const (
	DefaultLogLevel      = "info"
	LogFileName          = "airlake.log"
	LogFileMaxSizeMB     = 100
	LogFileMaxBackups    = 5
	LogFileMaxAgeDays    = 7
	DefaultRetryCount    = 5
	DefaultRateLimit     = 10 // requests per second
	DefaultHTTPTimeout   = 60 * time.Second
	DefaultMaxRetryDelay = 2 * time.Minute
	DefaultPageSize      = 100
)

var (
	ErrInvalidConfig   = errors.New("invalid configuration")
	ErrUnknownStream   = errors.New("stream not found in source")
	ErrConsumerStopped = errors.New("message consumer stopped reading")
)
