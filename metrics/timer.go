package metrics

import "time"

// A Timer measures a single operation. Stopping it reports the elapsed time
// through the client and hands the measured duration back to the caller.
type Timer struct {
	client Client
	name   string
	tags   Tags
	start  time.Time
}

// StartTimer starts measuring now.
func StartTimer(client Client, name string, tags Tags) *Timer {
	return &Timer{
		client: client,
		name:   name,
		tags:   tags,
		start:  time.Now(),
	}
}

// Stop reports the elapsed time as a timing metric and returns it.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	t.client.Timing(t.name, t.tags, elapsed)

	return elapsed
}
