package styles

import "strings"

// Style is one of the transformation styles a user can pick.
type Style string

const (
	Ghibli        Style = "Ghibli"
	Minecraft     Style = "Minecraft"
	ChickenJockey Style = "Chicken-Jockey"
	Humanize      Style = "Humanize"
)

const fallbackPrompt = "Transform this image in a creative way."

var prompts = map[Style]string{
	Ghibli:        "Transform this image into Studio Ghibli animation style with vibrant colors, whimsical elements, and a dreamy atmosphere.",
	Minecraft:     "Transform this image into Minecraft style with blocky pixelated texture, bright colors, and cubic shapes.",
	ChickenJockey: "Transform this image into a blocky Minecraft-style character cool green zombie riding a chicken.",
	Humanize:      "Transform this image into a realistic human-like representation with natural proportions, detailed features, and lifelike textures.",
}

// All returns the styles in display order.
func All() []Style {
	return []Style{Ghibli, Minecraft, ChickenJockey, Humanize}
}

// Parse matches a user-supplied value against the closed style set,
// ignoring case and separator differences ("chicken jockey" == "Chicken-Jockey").
func Parse(value string) (Style, bool) {
	normalized := normalize(value)
	if normalized == "" {
		return "", false
	}
	for _, s := range All() {
		if normalize(string(s)) == normalized {
			return s, true
		}
	}
	return "", false
}

// Prompt resolves the fixed instruction text for the style. It is total:
// unknown values get a generic fallback, which upstream validation makes
// unreachable in practice.
func (s Style) Prompt() string {
	if p, ok := prompts[s]; ok {
		return p
	}
	return fallbackPrompt
}

// Key is the lowercased form used in archive entry and download names.
func (s Style) Key() string {
	return strings.ToLower(string(s))
}

func normalize(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	value = strings.ReplaceAll(value, " ", "-")
	value = strings.ReplaceAll(value, "_", "-")
	return value
}
