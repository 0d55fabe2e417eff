// common/redis/config.go
package redis

import (
	"fmt"
	"time"

	"github.com/ntulenev/KafkaSnapshot-sub000/common/backoff"
)

// Config describes the Redis connection.
type Config struct {
	Addr        string         `mapstructure:"addr"`
	Username    string         `mapstructure:"username"`
	Password    string         `mapstructure:"password" json:"-"`
	DB          int            `mapstructure:"db"`
	DialTimeout time.Duration  `mapstructure:"dial_timeout"`
	Backoff     backoff.Config `mapstructure:"backoff"`
}

func (c *Config) applyDefaults() {
	if c.DialTimeout <= 0 {
		c.DialTimeout = 5 * time.Second
	}
}

// Validate checks the connection settings.
func (c Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("redis: addr is required")
	}
	if c.DB < 0 {
		return fmt.Errorf("redis: db must not be negative")
	}
	return c.Backoff.Validate()
}
