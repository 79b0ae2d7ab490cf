package mqtt

import "log"

// pending is a serialized message waiting for the broker.
type pending struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// outbox holds messages published while the broker is unreachable, oldest
// first. When full, the oldest message is dropped. Callers synchronize.
type outbox struct {
	msgs    []pending
	limit   int
	dropped int
}

func newOutbox(limit int) *outbox {
	if limit < 1 {
		limit = 1
	}
	return &outbox{limit: limit}
}

func (o *outbox) add(msg pending) {
	if len(o.msgs) == o.limit {
		if o.dropped == 0 {
			log.Printf("mqtt: outbox full (%d messages), dropping oldest", o.limit)
		}
		o.dropped++
		copy(o.msgs, o.msgs[1:])
		o.msgs[len(o.msgs)-1] = msg
		return
	}
	o.msgs = append(o.msgs, msg)
}

// take empties the outbox and returns its contents with the drop count.
func (o *outbox) take() ([]pending, int) {
	msgs, dropped := o.msgs, o.dropped
	o.msgs = nil
	o.dropped = 0
	return msgs, dropped
}

func (o *outbox) size() int {
	return len(o.msgs)
}
