package driven

// ConfigStore is the persisted layer of configuration, below the env
// file and the environment. Keys are dotted, as in
// "embedding.batch_size". The typed getters return the zero value for
// a missing key or a value of another type.
type ConfigStore interface {
	Get(key string) (any, bool)
	GetString(key string) string
	GetInt(key string) int
	GetBool(key string) bool
	GetStringSlice(key string) []string

	// Keys lists stored keys in sorted order.
	Keys() []string

	// Set and Unset write through to storage.
	Set(key string, value any) error
	Unset(key string) error

	Save() error
	Load() error

	// Path locates the backing file, or describes the store when there
	// is none.
	Path() string
}
