package pagination

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwrk-planet/watch-party/internal/domain"
)

func TestCursor_EncodeDecode(t *testing.T) {
	c := Cursor{CreatedAt: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), ID: "abc"}
	s, err := Encode(c)
	require.NoError(t, err)

	got, err := Decode(s)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, c.CreatedAt.Equal(got.CreatedAt))
	assert.Equal(t, "abc", got.ID)

	first, err := Decode("")
	require.NoError(t, err)
	assert.Nil(t, first)
}

func TestCursor_DecodeGarbage(t *testing.T) {
	_, err := Decode("%%%")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidCursor))
	assert.True(t, errors.Is(err, domain.ErrInvalidArgument))
}

func TestCursor_After(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	c := Cursor{CreatedAt: t0, ID: "m"}

	assert.True(t, c.After(t0.Add(-time.Second), "z"))
	assert.True(t, c.After(t0, "a"))
	assert.False(t, c.After(t0, "m"))
	assert.False(t, c.After(t0.Add(time.Second), "a"))
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, 20, ClampLimit(0, 20, 50))
	assert.Equal(t, 50, ClampLimit(500, 20, 50))
	assert.Equal(t, 7, ClampLimit(7, 20, 50))
}
