package models

// GenerationTask is the unit of work handed to a worker.
// Index is the seed's position in the input file and is used for logging and
// progress only; generated records are not ordered by it.
type GenerationTask struct {
	Index int
	Seed  Record
}

// Tasks builds one task per seed at or after start, in ascending index order.
// A start beyond the end of seeds yields no tasks.
func Tasks(seeds []Record, start int) []GenerationTask {
	if start < 0 {
		start = 0
	}
	if start >= len(seeds) {
		return nil
	}
	tasks := make([]GenerationTask, 0, len(seeds)-start)
	for i := start; i < len(seeds); i++ {
		tasks = append(tasks, GenerationTask{Index: i, Seed: seeds[i]})
	}
	return tasks
}
