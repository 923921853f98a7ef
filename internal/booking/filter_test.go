package booking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatusFilter(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"empty means all", "", nil},
		{"all keyword", "all", nil},
		{"all mixed case", "All", nil},
		{"scheduled expands", "scheduled", []string{"pending", "confirmed"}},
		{"single status", "pending", []string{"pending"}},
		{"single with spaces", "  confirmed  ", []string{"confirmed"}},
		{"comma list", "pending,confirmed", []string{"pending", "confirmed"}},
		{"list with spaces", "completed, cancelled", []string{"completed", "cancelled"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseStatusFilter(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseStatusFilterInvalid(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		token string
	}{
		{"unknown value", "banana", ""},
		{"unknown in list", "pending,banana", "banana"},
		{"scheduled inside list", "scheduled,confirmed", "scheduled"},
		{"only commas", ",,,", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseStatusFilter(tt.raw)
			assert.Nil(t, got)

			var ferr *FilterError
			require.ErrorAs(t, err, &ferr)
			assert.Equal(t, tt.token, ferr.Token)
		})
	}
}
