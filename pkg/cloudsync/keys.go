package cloudsync

// MaxKeyNameLen is the maximum length of a user-supplied key name.
const MaxKeyNameLen = 256

// DatastorePrefix marks the subnamespace whose admission is gated by the
// DATASTORE_ENABLED flag.
const DatastorePrefix = "dataStore/"

// KeyErrorKind tags the way a key name failed validation.
type KeyErrorKind int

const (
	KeyEmpty KeyErrorKind = iota
	KeyTooLong
	KeyInvalidChars
)

// KeyError describes a rejected key name. The message is part of the API
// surface: it travels verbatim in error responses and sync error records.
type KeyError struct {
	Kind KeyErrorKind
}

func (e *KeyError) Error() string {
	switch e.Kind {
	case KeyEmpty:
		return "Key cannot be empty"
	case KeyTooLong:
		return "Key name exceeds 256 characters"
	default:
		return "Key contains invalid characters (allowed: alphanumeric, _, -, ., /)"
	}
}

// ValidateKey enforces the syntactic limits on user-supplied key names:
// non-empty, at most MaxKeyNameLen bytes, and only ASCII alphanumerics
// plus underscore, hyphen, dot, and slash.
func ValidateKey(key string) error {
	if key == "" {
		return &KeyError{Kind: KeyEmpty}
	}
	if len(key) > MaxKeyNameLen {
		return &KeyError{Kind: KeyTooLong}
	}
	for i := 0; i < len(key); i++ {
		b := key[i]
		switch {
		case b >= 'a' && b <= 'z':
		case b >= 'A' && b <= 'Z':
		case b >= '0' && b <= '9':
		case b == '_' || b == '-' || b == '.' || b == '/':
		default:
			return &KeyError{Kind: KeyInvalidChars}
		}
	}
	return nil
}

// IsDatastoreKey reports whether the key targets the dataStore/
// subnamespace.
func IsDatastoreKey(key string) bool {
	return len(key) >= len(DatastorePrefix) && key[:len(DatastorePrefix)] == DatastorePrefix
}
