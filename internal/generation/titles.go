package generation

import (
	"context"
	"math/rand/v2"
)

// TitlePool is the fixed set of titles given to completed tracks when no
// titler is configured or the titler returns nothing.
var TitlePool = []string{
	"Midnight Echoes",
	"Neon Dreams",
	"Electric Sunrise",
	"Velvet Horizon",
	"Crystal Waves",
	"Golden Hour",
	"Starlight Serenade",
	"Ocean Drift",
	"Paper Lanterns",
	"City After Rain",
}

// TitleFunc generates a title for a prompt. Returns empty string on failure.
type TitleFunc func(ctx context.Context, prompt string) string

// PoolTitle picks a random title from TitlePool.
func PoolTitle() string {
	return TitlePool[rand.IntN(len(TitlePool))]
}
