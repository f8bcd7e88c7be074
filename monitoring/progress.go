package monitoring

import (
	"sync"
	"time"
)

// A ProgressBar tracks how much of one budget a run has consumed.
type ProgressBar struct {
	sync.Mutex
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Unit      string    `json:"unit"`
	StartTime time.Time `json:"start_time"`
	Total     float64   `json:"total"`
	Finished  float64   `json:"finished"`
}

// Update sets the consumed amount. The amount never goes backward.
func (b *ProgressBar) Update(finished float64) {
	b.Lock()
	defer b.Unlock()

	if finished > b.Finished {
		b.Finished = finished
	}
}

// Fraction returns the consumed share of the bar, capped at 1.
func (b *ProgressBar) Fraction() float64 {
	b.Lock()
	defer b.Unlock()

	if b.Total <= 0 {
		return 0
	}

	f := b.Finished / b.Total
	if f > 1 {
		return 1
	}

	return f
}

type progressBarSnapshot struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Unit      string    `json:"unit"`
	StartTime time.Time `json:"start_time"`
	Total     float64   `json:"total"`
	Finished  float64   `json:"finished"`
}

func (b *ProgressBar) snapshot() progressBarSnapshot {
	b.Lock()
	defer b.Unlock()

	return progressBarSnapshot{
		ID:        b.ID,
		Name:      b.Name,
		Unit:      b.Unit,
		StartTime: b.StartTime,
		Total:     b.Total,
		Finished:  b.Finished,
	}
}
