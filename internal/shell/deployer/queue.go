package deployer

import "sync"

// projectQueue runs jobs one at a time per project. Jobs of different
// projects run concurrently. A lane's goroutine exits once its queue drains.
type projectQueue struct {
	mu    sync.Mutex
	lanes map[int64][]func()
	wg    sync.WaitGroup
}

func newProjectQueue() *projectQueue {
	return &projectQueue{lanes: make(map[int64][]func())}
}

// enqueue appends job to the project's lane, starting the lane if idle.
func (q *projectQueue) enqueue(projectID int64, job func()) {
	q.wg.Add(1)

	q.mu.Lock()
	pending, active := q.lanes[projectID]
	q.lanes[projectID] = append(pending, job)
	q.mu.Unlock()

	if !active {
		go q.drain(projectID)
	}
}

func (q *projectQueue) drain(projectID int64) {
	for {
		q.mu.Lock()
		pending := q.lanes[projectID]
		if len(pending) == 0 {
			delete(q.lanes, projectID)
			q.mu.Unlock()
			return
		}
		job := pending[0]
		q.lanes[projectID] = pending[1:]
		q.mu.Unlock()

		job()
		q.wg.Done()
	}
}

// pending returns the number of queued jobs of a project, excluding the one
// in progress.
func (q *projectQueue) pending(projectID int64) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.lanes[projectID])
}

// wait blocks until every enqueued job has finished.
func (q *projectQueue) wait() {
	q.wg.Wait()
}
