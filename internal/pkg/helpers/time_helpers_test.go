package helpers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	assert.Equal(t, 90*time.Minute, ParseDuration("1h30m", time.Second))
	assert.Equal(t, time.Second, ParseDuration("soon", time.Second))
}

func TestLoadLocation(t *testing.T) {
	assert.Equal(t, time.UTC, LoadLocation(""))
	assert.Equal(t, time.UTC, LoadLocation("Nowhere/Special"))
}

func TestParseAsOf(t *testing.T) {
	now := time.Date(2019, 7, 16, 12, 30, 0, 0, time.UTC)

	got, err := ParseAsOf("", now, time.UTC)
	require.NoError(t, err)
	assert.True(t, got.Equal(now))

	got, err = ParseAsOf("2019-07-16T18:00:00+05:30", now, time.UTC)
	require.NoError(t, err)
	assert.True(t, got.Equal(now))

	_, err = ParseAsOf("16/07/2019", now, time.UTC)
	assert.Error(t, err)
}
