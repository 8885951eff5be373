package planner

import (
	"fmt"
	"sort"

	"cine-journey/storage"
)

const (
	// SlackMinutes is how far a journey may run past the requested duration
	SlackMinutes = 30
	// CloseEnoughMinutes stops selection once the total is this near the target
	CloseEnoughMinutes = 15
)

// Compose greedily picks the best-rated candidates until the requested
// duration is filled. Items that would push the total past the target plus
// SlackMinutes are skipped. An empty filter accepts every content type.
func Compose(candidates []storage.Content, target int, filter storage.ContentType) (Journey, error) {
	if target <= 0 {
		return Journey{}, fmt.Errorf("%w: %d", ErrInvalidDuration, target)
	}

	pool := make([]storage.Content, 0, len(candidates))
	for _, c := range candidates {
		if filter != "" && c.ContentType != filter {
			continue
		}
		pool = append(pool, c)
	}

	sort.SliceStable(pool, func(i, j int) bool {
		return ratingOf(pool[i]) > ratingOf(pool[j])
	})

	capacity := target + SlackMinutes
	accumulated := 0
	selected := make([]storage.Content, 0, len(pool))

	for _, c := range pool {
		if c.DurationMinutes <= 0 {
			return Journey{}, fmt.Errorf("%w: candidate %q has duration %d", ErrInternal, c.Title, c.DurationMinutes)
		}
		if accumulated+c.DurationMinutes > capacity {
			continue
		}

		selected = append(selected, c)
		accumulated += c.DurationMinutes

		if abs(accumulated-target) < CloseEnoughMinutes {
			break
		}
	}

	return NewJourney(selected, accumulated)
}

// ratingOf orders unrated items as if they scored 0
func ratingOf(c storage.Content) float64 {
	if c.Rating == nil {
		return 0
	}
	return *c.Rating
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
