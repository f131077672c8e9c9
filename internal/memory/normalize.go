package memory

import "strings"

// NormalizeKey converts a memory key to its canonical stored form:
// lowercase, trimmed, with every run of non-alphanumeric characters
// collapsed to a single underscore and no leading or trailing separator.
//
// NormalizeKey is idempotent: applying it to an already-normalized key
// returns the key unchanged. "Tío.Auto Color" and "tio_auto_color"
// address the same fact (diacritics are non-alphanumeric and collapse
// into the separator).
func NormalizeKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))

	var b strings.Builder
	b.Grow(len(key))
	pendingSep := false
	for _, r := range key {
		alnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if !alnum {
			pendingSep = b.Len() > 0
			continue
		}
		if pendingSep {
			b.WriteByte('_')
			pendingSep = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
