package rating

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestForBands(t *testing.T) {
	assert.Equal(t, "Needs a bit more magic ✨", For(1).Caption)
	assert.Equal(t, "Needs a bit more magic ✨", For(3).Caption)
	assert.Equal(t, "Looking good! 🌟", For(5).Caption)
	assert.Equal(t, "Amazing creation! 🌈", For(9).Caption)
	assert.Equal(t, "Absolute perfection! 🦄✨", For(10).Caption)
}

func TestForClamps(t *testing.T) {
	assert.Equal(t, 1, For(-3).Score)
	assert.Equal(t, 10, For(42).Score)
}

func TestNewStaysInRange(t *testing.T) {
	src := rand.New(rand.NewSource(1))
	for i := 0; i < 200; i++ {
		r := New(src)
		assert.GreaterOrEqual(t, r.Score, 1)
		assert.LessOrEqual(t, r.Score, 10)
		assert.NotEmpty(t, r.Caption)
	}
}

func TestColors(t *testing.T) {
	assert.Len(t, Colors, 7)
}
