// Package identity turns the configured identity into protocol endpoints.
package identity

import (
	"upsock/pkg/config"
	"upsock/pkg/protocol"
)

// Local returns the endpoint of this process: the uEntity itself, resource 0.
func Local(c config.IdentityConfig) protocol.UUri {
	return protocol.UUri{
		Authority:      c.Authority,
		UEID:           c.UEID,
		UEVersionMajor: c.UEVersionMajor,
	}
}

// Topic returns the topic resource of the local entity.
func Topic(c config.IdentityConfig, resource uint32) protocol.UUri {
	return Local(c).WithResource(resource)
}
