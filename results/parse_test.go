package results

import (
	"testing"

	"github.com/mkalens/speedbracket/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFinalTime(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		wantTime   *int
		wantStatus *models.ResultStatus
		wantErr    bool
	}{
		{name: "plain time", raw: "01:23:45", wantTime: intPtr(1*3600 + 23*60 + 45)},
		{name: "zero time", raw: "00:00:00", wantTime: intPtr(0)},
		{name: "hours unbounded", raw: "125:00:01", wantTime: intPtr(125*3600 + 1)},
		{name: "surrounding whitespace", raw: "  00:10:00 ", wantTime: intPtr(600)},
		{name: "dnf uppercase", raw: "DNF", wantStatus: statusPtr(models.StatusDNF)},
		{name: "dnf lowercase", raw: "dnf", wantStatus: statusPtr(models.StatusDNF)},
		{name: "dq mixed case", raw: "Dq", wantStatus: statusPtr(models.StatusDQ)},
		{name: "empty", raw: "", wantErr: true},
		{name: "blank", raw: "   ", wantErr: true},
		{name: "minutes out of range", raw: "00:60:00", wantErr: true},
		{name: "seconds out of range", raw: "00:00:61", wantErr: true},
		{name: "missing seconds", raw: "10:30", wantErr: true},
		{name: "not a time", raw: "fast", wantErr: true},
		{name: "negative hours", raw: "-1:10:10", wantErr: true},
		{name: "unpadded minutes", raw: "0:5:00", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotTime, gotStatus, err := ParseFinalTime(tt.raw)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantTime, gotTime)
			assert.Equal(t, tt.wantStatus, gotStatus)
		})
	}
}

func TestParseFinalTimeRoundTrip(t *testing.T) {
	for _, h := range []int{0, 1, 9, 27, 101} {
		for _, m := range []int{0, 1, 30, 59} {
			for _, s := range []int{0, 9, 59} {
				raw := FormatFinalTime(h*3600 + m*60 + s)
				gotTime, gotStatus, err := ParseFinalTime(raw)
				require.NoError(t, err, raw)
				require.Nil(t, gotStatus, raw)
				require.Equal(t, h*3600+m*60+s, *gotTime, raw)
			}
		}
	}
}

func TestFormatFinalTime(t *testing.T) {
	assert.Equal(t, "00:00:07", FormatFinalTime(7))
	assert.Equal(t, "01:23:45", FormatFinalTime(1*3600+23*60+45))
	assert.Equal(t, "125:00:01", FormatFinalTime(125*3600+1))
}

func intPtr(v int) *int { return &v }

func statusPtr(s models.ResultStatus) *models.ResultStatus { return &s }
