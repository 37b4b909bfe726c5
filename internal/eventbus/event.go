package eventbus

import "time"

// Topic is a dot-delimited event subject, e.g. "job.created" or
// "queue.advanced". Subscribers match against a pattern whose last segment
// may be "*" (see matchesPattern).
type Topic string

const (
	TopicJobCreated   Topic = "job.created"
	TopicJobUpdated   Topic = "job.updated"
	TopicJobCompleted Topic = "job.completed"
	TopicJobFailed    Topic = "job.failed"
	TopicJobCancelled Topic = "job.cancelled"

	TopicQueueAdvanced Topic = "queue.advanced"
	TopicQueueChanged  Topic = "queue.changed"

	TopicPerformanceChanged Topic = "performance.changed"
)

// PatternJobs, PatternQueue and PatternPerformance are the three topic
// families PushHub subscribes to (spec.md §4.2).
const (
	PatternJobs         = "job.*"
	PatternQueue        = "queue.*"
	PatternPerformance  = "performance.*"
)

// Event is the envelope carried through the bus, modeled after the
// teacher's BaseEvent: a typed, timestamped wrapper around an
// opaque domain payload.
type Event struct {
	Topic     Topic       `json:"topic"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// lossTopic is the internal marker topic used to build an EventLossMarker;
// it never appears as an argument to Publish.
const lossTopic Topic = "_internal.loss"

// EventLossMarker is enqueued in place of a dropped event when a
// subscriber's buffer overflows, per spec.md §4.2. PushHub translates it
// into a "resync" directive to the client.
func EventLossMarker() Event {
	return Event{Topic: lossTopic, Timestamp: time.Now()}
}

// IsLossMarker reports whether e is an EventLossMarker.
func (e Event) IsLossMarker() bool {
	return e.Topic == lossTopic
}
