package gtfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDaySeconds(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{in: "00:00:00", want: 0},
		{in: "08:30:15", want: 8*3600 + 30*60 + 15},
		{in: " 7:05:00 ", want: 7*3600 + 5*60},
		{in: "25:10:00", want: 25*3600 + 10*60},
		{in: "12:30", want: 12*3600 + 30*60},
		{in: "", wantErr: true},
		{in: "12", wantErr: true},
		{in: "aa:00:00", wantErr: true},
		{in: "10:75:00", wantErr: true},
		{in: "-1:00:00", wantErr: true},
		{in: "1:2:3:4", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDaySeconds(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
