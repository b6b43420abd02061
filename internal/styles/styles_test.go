package styles

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPromptIsTotalOverClosedSet(t *testing.T) {
	for _, s := range All() {
		assert.NotEmpty(t, s.Prompt(), "style %s must have a prompt", s)
	}
}

func TestPromptFallback(t *testing.T) {
	got := Style("Vaporwave").Prompt()
	assert.Equal(t, "Transform this image in a creative way.", got)
}

func TestPromptWording(t *testing.T) {
	assert.Contains(t, Ghibli.Prompt(), "Studio Ghibli")
	assert.Contains(t, Ghibli.Prompt(), "dreamy atmosphere")
	assert.Contains(t, Minecraft.Prompt(), "blocky pixelated texture")
	assert.Contains(t, ChickenJockey.Prompt(), "zombie riding a chicken")
	assert.Contains(t, Humanize.Prompt(), "lifelike textures")
}

func TestParse(t *testing.T) {
	cases := map[string]Style{
		"Ghibli":         Ghibli,
		"ghibli":         Ghibli,
		"  MINECRAFT  ":  Minecraft,
		"chicken-jockey": ChickenJockey,
		"Chicken Jockey": ChickenJockey,
		"chicken_jockey": ChickenJockey,
		"humanize":       Humanize,
	}
	for in, want := range cases {
		got, ok := Parse(in)
		assert.True(t, ok, "Parse(%q)", in)
		assert.Equal(t, want, got)
	}

	for _, in := range []string{"", "picasso", "ghibli-2"} {
		_, ok := Parse(in)
		assert.False(t, ok, "Parse(%q) should fail", in)
	}
}

func TestKey(t *testing.T) {
	assert.Equal(t, "chicken-jockey", ChickenJockey.Key())
	assert.Equal(t, "ghibli", Ghibli.Key())
}
