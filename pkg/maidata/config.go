package maidata

import "runtime"

type Config struct {
	DBPath string
	// DefaultOffset is used for difficulties whose file sets no offset.
	DefaultOffset float64
	// MaxParallel bounds how many difficulties are materialized at once.
	MaxParallel int
	Logger      Logger
	Storage     Storage
}

type Option func(*Config)

func WithDBPath(path string) Option {
	return func(c *Config) {
		c.DBPath = path
	}
}

func WithDefaultOffset(secs float64) Option {
	return func(c *Config) {
		c.DefaultOffset = secs
	}
}

func WithMaxParallel(n int) Option {
	return func(c *Config) {
		c.MaxParallel = n
	}
}

func WithLogger(log Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

func WithStorage(storage Storage) Option {
	return func(c *Config) {
		c.Storage = storage
	}
}

func defaultConfig() *Config {
	return &Config{
		DBPath:      "maidata.sqlite3",
		MaxParallel: runtime.NumCPU(),
	}
}
