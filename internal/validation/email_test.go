package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		name    string
		email   string
		errMsg  string
		wantErr bool
	}{
		{
			name:  "valid email",
			email: "alice@x.com",
		},
		{
			name:  "valid email - mixed case",
			email: "Alice.Smith@Example.org",
		},
		{
			name:  "valid email - plus tag",
			email: "alice+news@x.com",
		},
		{
			name:    "empty email",
			email:   "",
			wantErr: true,
			errMsg:  "email cannot be empty",
		},
		{
			name:    "missing at sign",
			email:   "alice.x.com",
			wantErr: true,
			errMsg:  "not a valid address",
		},
		{
			name:    "missing domain",
			email:   "alice@",
			wantErr: true,
			errMsg:  "not a valid address",
		},
		{
			name:    "display name",
			email:   "Alice <alice@x.com>",
			wantErr: true,
			errMsg:  "not a valid address",
		},
		{
			name:    "leading space",
			email:   " alice@x.com",
			wantErr: true,
			errMsg:  "leading or trailing spaces",
		},
		{
			name:    "too long",
			email:   strings.Repeat("a", MaxEmailLen) + "@x.com",
			wantErr: true,
			errMsg:  "must not exceed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEmail(tt.email)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{name: "short password is fine", password: "pw123"},
		{name: "single char", password: "x"},
		{name: "exactly max length", password: strings.Repeat("p", MaxPasswordLen)},
		{name: "empty", password: "", wantErr: true},
		{name: "over bcrypt limit", password: strings.Repeat("p", MaxPasswordLen+1), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "empty", input: ""},
		{name: "simple", input: "Alice"},
		{name: "unicode", input: "Zoë Ångström"},
		{name: "max length", input: strings.Repeat("é", MaxNameLen)},
		{name: "too long", input: strings.Repeat("a", MaxNameLen+1), wantErr: true},
		{name: "newline", input: "Al\nice", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}
