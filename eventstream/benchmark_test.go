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
	"strconv"
	"sync/atomic"
	"testing"
)

// countingSubscriber is a minimal Subscriber implementation used for
// benchmarks. It avoids allocations and I/O so the benchmark focuses on
// delivery cost.
type countingSubscriber struct {
	id     string
	active atomic.Bool
	seen   atomic.Uint64
}

func newCountingSubscriber(id string) *countingSubscriber {
	s := &countingSubscriber{id: id}
	s.active.Store(true)
	return s
}

func (s *countingSubscriber) ID() string              { return s.id }
func (s *countingSubscriber) Active() bool            { return s.active.Load() }
func (s *countingSubscriber) Topics() []string        { return nil }
func (s *countingSubscriber) Iterator() chan *Message { ch := make(chan *Message); close(ch); return ch }
func (s *countingSubscriber) Shutdown()               { s.active.Store(false) }
func (s *countingSubscriber) signal(_ *Message)       { s.seen.Add(1) }
func (s *countingSubscriber) subscribe(_ string)      {}
func (s *countingSubscriber) unsubscribe(_ string)    {}

func newBenchmarkBroker(topic string, subs int) *Broker {
	b := &Broker{
		subscribers: make(map[string]Subscriber, subs),
		topics:      make(map[string]map[string]Subscriber, 1),
	}
	b.topics[topic] = make(map[string]Subscriber, subs)
	for i := 0; i < subs; i++ {
		sub := newCountingSubscriber(strconv.Itoa(i))
		b.subscribers[sub.ID()] = sub
		b.topics[topic][sub.ID()] = sub
	}
	return b
}

func benchmarkPublish(b *testing.B, subs int) {
	const topic = "pv.registered"
	broker := newBenchmarkBroker(topic, subs)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		broker.publishToTopic(topic, i)
	}
}

func BenchmarkPublish_Fanout1(b *testing.B)    { benchmarkPublish(b, 1) }
func BenchmarkPublish_Fanout10(b *testing.B)   { benchmarkPublish(b, 10) }
func BenchmarkPublish_Fanout100(b *testing.B)  { benchmarkPublish(b, 100) }
func BenchmarkPublish_Fanout1000(b *testing.B) { benchmarkPublish(b, 1000) }

func BenchmarkBoundedSignal(b *testing.B) {
	sub := newBoundedSubscriber(1024)
	message := NewMessage("pv.registered", "ISRC:QUAD:1:Fld")
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		sub.signal(message)
		if sub.messages.Len() == 1024 {
			b.StopTimer()
			for range sub.Iterator() {
			}
			b.StartTimer()
		}
	}
}
