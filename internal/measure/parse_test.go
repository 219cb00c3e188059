package measure

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camruler/camruler/internal/errors"
)

func TestParsePoints(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      string
		want    []Point
		wantErr bool
	}{
		{"three points", "0,0;100,0;100,50", []Point{{0, 0}, {100, 0}, {100, 50}}, false},
		{"spaces and trailing separator", " 1, 2 ; -3,4;", []Point{{1, 2}, {-3, 4}}, false},
		{"empty", "", nil, false},
		{"missing comma", "10 20", nil, true},
		{"not a number", "a,1", nil, true},
		{"float", "1.5,2", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParsePoints(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
