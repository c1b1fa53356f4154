package cloudsync

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateKey(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		wantKind KeyErrorKind
		wantOK   bool
	}{
		{"simple", "cfg/main", 0, true},
		{"all allowed punctuation", "a_b-c.d/e", 0, true},
		{"single char", "x", 0, true},
		{"digits", "0123456789", 0, true},
		{"max length", strings.Repeat("k", MaxKeyNameLen), 0, true},
		{"empty", "", KeyEmpty, false},
		{"over max length", strings.Repeat("k", MaxKeyNameLen+1), KeyTooLong, false},
		{"space", "a b", KeyInvalidChars, false},
		{"colon", "settings:1", KeyInvalidChars, false},
		{"non-ascii", "caf\xc3\xa9", KeyInvalidChars, false},
		{"control byte", "a\x00b", KeyInvalidChars, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateKey(tt.key)
			if tt.wantOK {
				assert.NoError(t, err)
				return
			}
			var keyErr *KeyError
			require.ErrorAs(t, err, &keyErr)
			assert.Equal(t, tt.wantKind, keyErr.Kind)
		})
	}
}

func TestKeyErrorMessages(t *testing.T) {
	// These strings are wire format: clients match on them.
	assert.Equal(t, "Key cannot be empty", (&KeyError{Kind: KeyEmpty}).Error())
	assert.Equal(t, "Key name exceeds 256 characters", (&KeyError{Kind: KeyTooLong}).Error())
	assert.Equal(t,
		"Key contains invalid characters (allowed: alphanumeric, _, -, ., /)",
		(&KeyError{Kind: KeyInvalidChars}).Error())
}

func TestIsDatastoreKey(t *testing.T) {
	assert.True(t, IsDatastoreKey("dataStore/save1"))
	assert.True(t, IsDatastoreKey("dataStore/"))
	assert.False(t, IsDatastoreKey("datastore/save1")) // case-sensitive
	assert.False(t, IsDatastoreKey("cfg/dataStore/x"))
	assert.False(t, IsDatastoreKey(""))
}
