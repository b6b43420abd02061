package rating

import "math/rand"

// Rating is the playful 1-10 score attached to each transformed image.
type Rating struct {
	Score   int    `json:"score"`
	Caption string `json:"caption"`
}

// Colors are the rainbow hues the UI uses to render the rating bar.
var Colors = []string{"#FF0000", "#FF7F00", "#FFFF00", "#00FF00", "#0000FF", "#4B0082", "#8B00FF"}

type band struct {
	min, max int
	caption  string
}

var bands = []band{
	{1, 3, "Needs a bit more magic ✨"},
	{4, 6, "Looking good! 🌟"},
	{7, 9, "Amazing creation! 🌈"},
	{10, 10, "Absolute perfection! 🦄✨"},
}

// New draws a random rating from src, or from the shared source when src
// is nil.
func New(src *rand.Rand) Rating {
	score := 0
	if src != nil {
		score = 1 + src.Intn(10)
	} else {
		score = 1 + rand.Intn(10)
	}
	return For(score)
}

// For returns the rating for a fixed score, clamped to [1,10].
func For(score int) Rating {
	if score < 1 {
		score = 1
	}
	if score > 10 {
		score = 10
	}

	for _, b := range bands {
		if score >= b.min && score <= b.max {
			return Rating{Score: score, Caption: b.caption}
		}
	}
	return Rating{Score: score}
}
