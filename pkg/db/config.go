package db

type Config struct {
	// Type selects the backing store, either "badger" (default) or "redis"
	Type string `toml:"type"`
	// Dir is a directory to keep database files (badger only)
	Dir string `toml:"dir"`
	// RedisURL is a connection string for the redis backing store,
	// e.g. redis://localhost:6379
	RedisURL string `toml:"redis_url"`
	// Badger holds low level badger tuning knobs
	Badger *BadgerConfig `toml:"badger"`
}
