package history

import "github.com/matst80/hookcast/internal/obs"

// NewStore picks the backend: Redis when an address is configured, local
// files otherwise.
func NewStore(dir, redisAddr, redisPassword string, redisDB int) (Store, error) {
	if redisAddr == "" {
		obs.Info("history.backend", obs.Fields{"type": "file", "dir": dir})
		return NewFileStore(dir)
	}
	obs.Info("history.backend", obs.Fields{"type": "redis", "addr": redisAddr})
	return NewRedisStore(redisAddr, redisPassword, redisDB)
}
