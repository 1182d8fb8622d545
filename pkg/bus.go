package vault

/*
The message subsystem gives event-based access to the withdrawal engine's
lifecycle, for integration purposes: the trading system and ops tooling
watch registrations, submissions and confirmations without polling.

A simple internal 'message bus' is passed around internally, with an
internal goroutine and a 'Send' method for sending 'messages'.

Outbound destinations are created in config: rolling log files, HTTP
callbacks, and a ZMQ publisher. These are MessageSubscribers, registered
with the bus along with the EventTypes they want.
*/

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
)

// MessageSubscribers are things that subscribe to the bus and handle
// messages: log files, HTTP callbacks, ZMQ publishers.
type MessageSubscriber interface {
	GetChan() chan Message
}

// Created by the bus, wraps message sent with Send
type Message struct {
	EventType EventType
	Message   []byte
	ID        string // optional
}

type Subscription struct {
	dest  MessageSubscriber
	types []EventType
}

func NewMessageBus() MessageBus {
	return MessageBus{
		receivers: make(map[*Subscription]bool),
		inbound:   make(chan Message, 1),
	}
}

type MessageBus struct {
	// Registered MessageSubscribers.
	receivers map[*Subscription]bool

	// Messages from Send(), destined for MessageSubscribers
	inbound chan Message
}

// Send a message to the bus with a specific EventType.
// msg can be anything JSON serialisable; it is wrapped in a Message and
// delivered to any interested MessageSubscribers.
func (b MessageBus) Send(t EventType, msg interface{}, msgID ...string) error {
	j, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	if len(msgID) == 0 {
		b.inbound <- Message{t, j, generateID()}
	} else {
		b.inbound <- Message{t, j, msgID[0]}
	}
	return nil
}

func (b MessageBus) Register(m MessageSubscriber, types ...EventType) {
	sub := Subscription{m, types}
	b.receivers[&sub] = true
}

func (b MessageBus) Unregister(sub *Subscription) {
	delete(b.receivers, sub)
	close((*sub).dest.GetChan())
}

func (s *Subscription) wants(t EventType) bool {
	for _, w := range s.types {
		if w.Type() == "ALL" || w.Type() == t.Type() {
			return true
		}
	}
	return false
}

// Implements conductor.Service
func (b MessageBus) Run(started, stopped chan bool, stop chan context.Context) error {
	go func() {
		started <- true
		for {
			select {
			case <-stop:
				stopped <- true
				return
			case message := <-b.inbound:
				for sub := range b.receivers {
					if !sub.wants(message.EventType) {
						continue
					}
					select {
					case sub.dest.GetChan() <- message:
					default:
						// subscriber is wedged; drop it rather than block the bus
						b.Unregister(sub)
					}
				}
			}
		}
	}()
	return nil
}

func generateID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return hex.EncodeToString(b)
}
