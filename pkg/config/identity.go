package config

import (
	"fmt"
	"strings"
)

// IdentityConfig names the local uEntity. The authority doubles as the
// default channel name.
type IdentityConfig struct {
	Authority      string `mapstructure:"authority" yaml:"authority"`
	UEID           uint32 `mapstructure:"ue_id" yaml:"ue_id"`
	UEVersionMajor uint32 `mapstructure:"ue_version_major" yaml:"ue_version_major"`
}

func (c *IdentityConfig) validate() error {
	c.Authority = strings.TrimSpace(c.Authority)
	if c.Authority == "" {
		return fmt.Errorf("identity.authority is required")
	}
	if strings.ContainsAny(c.Authority, `/\`) {
		return fmt.Errorf("invalid identity.authority %q: contains a path separator", c.Authority)
	}
	if c.UEVersionMajor > 0xff {
		return fmt.Errorf("invalid identity.ue_version_major: %d", c.UEVersionMajor)
	}
	return nil
}
