package app

import (
	iauth "github.com/leasehold/leasehold/internal/auth"
)

// JWTServiceConfig adapts the loaded settings into a JWT service configuration.
func (a AuthConfig) JWTServiceConfig() iauth.JWTConfig {
	ttl := a.JWT.TTL
	if ttl <= 0 {
		ttl = iauth.DefaultAccessTokenTTL
	}

	return iauth.JWTConfig{
		Secret:         a.JWT.Secret,
		Issuer:         a.JWT.Issuer,
		AccessTokenTTL: ttl,
	}
}
