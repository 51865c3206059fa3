package scale

// Mapper converts a raw correct-answer count into a reported band for
// one (family, skill) profile.
type Mapper interface {
	Band(raw, max float64) (float64, bool)
}

var registry = map[string]Mapper{}

// Register binds a mapper to a key like "ielts.reading".
func Register(key string, m Mapper) { registry[key] = m }

// Lookup returns a registered mapper for a profile key.
func Lookup(key string) (Mapper, bool) { m, ok := registry[key]; return m, ok }

// Apply converts raw to a band for the given key. ok is false when no
// mapper covers the profile; callers then report the raw score only.
func Apply(key string, raw, max float64) (float64, bool) {
	m, ok := registry[key]
	if !ok || m == nil {
		return 0, false
	}
	return m.Band(raw, max)
}
