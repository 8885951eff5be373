package planner

import (
	"fmt"

	"cine-journey/storage"

	"github.com/goccy/go-json"
)

// Journey is an ordered selection of content and its combined runtime.
// It cannot be changed once built.
type Journey struct {
	contents      []storage.Content
	totalDuration int
}

// NewJourney checks that total is the sum of the item durations
func NewJourney(contents []storage.Content, total int) (Journey, error) {
	sum := 0
	for _, c := range contents {
		if c.DurationMinutes <= 0 {
			return Journey{}, fmt.Errorf("%w: %q has duration %d", ErrInternal, c.Title, c.DurationMinutes)
		}
		sum += c.DurationMinutes
	}
	if sum != total {
		return Journey{}, fmt.Errorf("%w: journey total %d does not match item durations %d", ErrInternal, total, sum)
	}

	return Journey{
		contents:      append([]storage.Content{}, contents...),
		totalDuration: total,
	}, nil
}

// Contents returns the items in selection order
func (j Journey) Contents() []storage.Content {
	return append([]storage.Content{}, j.contents...)
}

func (j Journey) TotalDuration() int {
	return j.totalDuration
}

func (j Journey) Len() int {
	return len(j.contents)
}

func (j Journey) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		TotalDuration int               `json:"total_duration"`
		Contents      []storage.Content `json:"contents"`
	}{
		TotalDuration: j.totalDuration,
		Contents:      j.Contents(),
	})
}
