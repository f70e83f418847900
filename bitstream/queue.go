package bitstream

import "io"

// A Queue is an in-memory FIFO of packets.
// Its Push and Pop methods fit PushConfig.OutputHandler and PopConfig.InputHandler,
// connecting a PushStream to a PopStream without an external channel.
type Queue struct {
	packets [][]byte
}

// NewQueue returns a Queue holding packets, which are served in order.
func NewQueue(packets ...[]byte) *Queue {
	return &Queue{packets: packets}
}

// Push appends a packet.
func (q *Queue) Push(packet []byte) error {
	q.packets = append(q.packets, packet)
	return nil
}

// Pop removes and returns the oldest packet, or io.EOF if the queue is empty.
func (q *Queue) Pop() ([]byte, error) {
	if len(q.packets) == 0 {
		return nil, io.EOF
	}
	p := q.packets[0]
	q.packets[0] = nil
	q.packets = q.packets[1:]
	return p, nil
}

// Len returns the number of queued packets.
func (q *Queue) Len() int {
	return len(q.packets)
}

// Bytes returns the concatenation of the queued packets.
func (q *Queue) Bytes() []byte {
	var n int
	for _, p := range q.packets {
		n += len(p)
	}
	b := make([]byte, 0, n)
	for _, p := range q.packets {
		b = append(b, p...)
	}
	return b
}
