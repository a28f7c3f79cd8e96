package notify

import "sync"

// Recorder is a Publisher that keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Publish records the event.
func (r *Recorder) Publish(topic string, event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	event.Topic = topic
	r.events = append(r.events, event)
}

// Events returns the recorded events of a topic in publish order.
func (r *Recorder) Events(topic string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Event
	for _, e := range r.events {
		if e.Topic == topic {
			out = append(out, e)
		}
	}
	return out
}
