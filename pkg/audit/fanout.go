package audit

// MultiSink publishes each event to every member sink in order
type MultiSink []Sink

// Publish fans the event out
func (m MultiSink) Publish(event Event) {
	for _, sink := range m {
		sink.Publish(event)
	}
}
