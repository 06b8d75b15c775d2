package utility

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContains(t *testing.T) {
	assert.True(t, Contains([]string{"a", "b"}, "b"))
	assert.False(t, Contains([]string{"a", "b"}, "c"))
	assert.False(t, Contains(nil, "a"))
}

func TestToInt(t *testing.T) {
	assert.Equal(t, 15, ToInt("15"))
	assert.Equal(t, 15, ToInt("15.7"))
	assert.Equal(t, 0, ToInt("none"))
}

func TestNewUUIDIsUnique(t *testing.T) {
	first := NewUUID()
	second := NewUUID()
	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second)
}
