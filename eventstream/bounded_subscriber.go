// MIT License
//
// Copyright (c) 2023-2026 PVArchive Authors
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package eventstream

import (
	"sync"
	"sync/atomic"

	gods "github.com/Workiva/go-datastructures/queue"
	"github.com/google/uuid"
)

// boundedSubscriber buffers at most capacity messages in a ring buffer.
// When the buffer is full new messages are dropped; publishers are never
// blocked by a slow consumer.
type boundedSubscriber struct {
	id string

	topicsMu sync.Mutex
	topics   map[string]bool

	messages *gods.RingBuffer

	active atomic.Bool
}

var _ Subscriber = (*boundedSubscriber)(nil)

func newBoundedSubscriber(capacity int) *boundedSubscriber {
	s := &boundedSubscriber{
		id:       uuid.NewString(),
		topics:   make(map[string]bool),
		messages: gods.NewRingBuffer(uint64(capacity)),
	}
	s.active.Store(true)
	return s
}

func (s *boundedSubscriber) ID() string {
	return s.id
}

func (s *boundedSubscriber) Active() bool {
	return s.active.Load()
}

func (s *boundedSubscriber) Topics() []string {
	s.topicsMu.Lock()
	defer s.topicsMu.Unlock()

	topics := make([]string, 0, len(s.topics))
	for topic := range s.topics {
		topics = append(topics, topic)
	}
	return topics
}

func (s *boundedSubscriber) Shutdown() {
	if s.active.Swap(false) {
		s.messages.Dispose()
	}
}

// Iterator drains the messages buffered at the time of invocation and returns
// them through a closed channel.
func (s *boundedSubscriber) Iterator() chan *Message {
	n := s.messages.Len()
	out := make(chan *Message, n)
	for i := uint64(0); i < n; i++ {
		item, err := s.messages.Get()
		if err != nil {
			break
		}
		msg, ok := item.(*Message)
		if !ok {
			break
		}
		out <- msg
	}
	close(out)
	return out
}

func (s *boundedSubscriber) signal(message *Message) {
	if !s.active.Load() {
		return
	}
	// Offer drops the message when the buffer is full
	_, _ = s.messages.Offer(message)
}

func (s *boundedSubscriber) subscribe(topic string) {
	s.topicsMu.Lock()
	s.topics[topic] = true
	s.topicsMu.Unlock()
}

func (s *boundedSubscriber) unsubscribe(topic string) {
	s.topicsMu.Lock()
	delete(s.topics, topic)
	s.topicsMu.Unlock()
}
