package options

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tableflip.dev/daylog/pkg/timeutil"
)

func TestParseOn(t *testing.T) {
	today := timeutil.Date(2024, 12, 5)
	tests := map[string]struct {
		in   string
		want timeutil.Day
	}{
		"empty":        {in: "", want: today},
		"today":        {in: "Today", want: today},
		"tomorrow":     {in: "tomorrow", want: timeutil.Date(2024, 12, 6)},
		"yesterday":    {in: "yesterday", want: timeutil.Date(2024, 12, 4)},
		"offset":       {in: "+3", want: timeutil.Date(2024, 12, 8)},
		"back":         {in: "-5", want: timeutil.Date(2024, 11, 30)},
		"iso":          {in: "2020-2-28", want: timeutil.Date(2020, 2, 28)},
		"iso padded":   {in: "2020-02-08", want: timeutil.Date(2020, 2, 8)},
		"short":        {in: "12/24", want: timeutil.Date(2024, 12, 24)},
		"short rolled": {in: "1/3", want: timeutil.Date(2025, 1, 3)},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := ParseOn(tc.in, today)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	_, err := ParseOn("someday", today)
	assert.Error(t, err)
	_, err = ParseOn("+x", today)
	assert.Error(t, err)
}

func TestClock(t *testing.T) {
	o := &AddOptions{At: "7:30"}
	h, m, err := o.Clock()
	require.NoError(t, err)
	assert.Equal(t, 7, h)
	assert.Equal(t, 30, m)

	o.At = "noon"
	_, _, err = o.Clock()
	assert.Error(t, err)
}
