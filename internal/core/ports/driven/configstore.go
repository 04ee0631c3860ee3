package driven

// ConfigStore is the persisted key/value layer under the typed
// configuration. Keys are "section.name", e.g. "llm.model".
type ConfigStore interface {
	// Get returns the raw value and whether the key is present.
	Get(key string) (any, bool)

	// GetString, GetInt and GetBool return the zero value when the key is
	// missing or holds another type.
	GetString(key string) string
	GetInt(key string) int
	GetBool(key string) bool

	// Keys lists the keys present, sorted.
	Keys() []string

	// Set writes one value through to storage.
	Set(key string, value any) error

	// Load re-reads storage, discarding in-memory values.
	Load() error

	// Path is where the values are stored.
	Path() string
}
