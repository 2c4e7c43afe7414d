package memcache_fx

import (
	"go.uber.org/fx"

	mem "cicerone/pkg/memcache"
)

var Module = fx.Provide(provideSignedURLCache)

func provideSignedURLCache() mem.SignedURLStore {
	return mem.NewSignedURLs()
}
