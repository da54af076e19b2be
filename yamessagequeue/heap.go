package yamessagequeue

import "container/heap"

// jobHeap orders jobs by priority, lower first, then by arrival.
type jobHeap []*Job

func (h jobHeap) Len() int { return len(h) }

func (h jobHeap) Less(i int, j int) bool {
	if h[i].Priority == h[j].Priority {
		return h[i].sequence < h[j].sequence
	}

	return h[i].Priority < h[j].Priority
}

func (h jobHeap) Swap(i int, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *jobHeap) Push(x any) {
	job, ok := x.(*Job)
	if !ok {
		return
	}

	job.index = len(*h)
	*h = append(*h, job)
}

func (h *jobHeap) Pop() any {
	old := *h
	n := len(old)
	job := old[n-1]
	old[n-1] = nil
	job.index = -1
	*h = old[:n-1]

	return job
}

// remove deletes the jobs matching match and returns them.
func (h *jobHeap) remove(match func(*Job) bool) []*Job {
	var removed []*Job

	for i := 0; i < h.Len(); {
		if match((*h)[i]) {
			removed = append(removed, heap.Remove(h, i).(*Job))

			continue
		}

		i++
	}

	return removed
}
