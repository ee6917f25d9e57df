package service

import "time"

// Progress is the advisory position of a run after one completed task.
type Progress struct {
	// Index is the seed index of the task that just completed.
	Index     int
	Completed int
	// Total is the full seed count, including seeds skipped by StartIndex.
	Total    int
	Fraction float64
	Elapsed  time.Duration
	ETA      time.Duration
}

// computeProgress derives fraction and a linear ETA from the completed count.
func computeProgress(index, completed, total int, elapsed time.Duration) Progress {
	p := Progress{
		Index:     index,
		Completed: completed,
		Total:     total,
		Elapsed:   elapsed,
	}
	if total > 0 {
		p.Fraction = float64(completed) / float64(total)
	}
	if completed > 0 && total > completed {
		p.ETA = time.Duration(float64(elapsed) * float64(total-completed) / float64(completed))
	}
	return p
}

// Reporter receives progress events from the engine's collecting goroutine.
type Reporter interface {
	TaskCompleted(p Progress)
	TaskFailed(index int, err error)
}

type nopReporter struct{}

func (nopReporter) TaskCompleted(Progress) {}
func (nopReporter) TaskFailed(int, error) {}
