package event

import (
	"context"
	"fmt"

	"github.com/pebbe/zmq4"
	"github.com/tjstebbing/conductor"

	vault "github.com/misterlabs/agentvault/pkg"
)

// interface guard ensures ZMQEmitter implements vault.MessageSubscriber
var _ vault.MessageSubscriber = ZMQEmitter{}

// ZMQEmitter publishes engine events on a ZMQ PUB socket so the trading
// system can follow withdrawal lifecycles without polling the web API.
// Frame layout: [topic, id, json payload], topic "TYPE:EVENT".
type ZMQEmitter struct {
	Rec  chan vault.Message
	bind string
	bus  *vault.MessageBus
}

func NewZMQEmitter(config vault.EmitterConfig, bus *vault.MessageBus) ZMQEmitter {
	return ZMQEmitter{
		Rec:  make(chan vault.Message, 1000),
		bind: "tcp://" + config.Bind + ":" + config.Port,
		bus:  bus,
	}
}

// Implements vault.MessageSubscriber
func (e ZMQEmitter) GetChan() chan vault.Message {
	return e.Rec
}

// Implements conductor.Service
func (e ZMQEmitter) Run(started, stopped chan bool, stop chan context.Context) error {
	sock, err := zmq4.NewSocket(zmq4.PUB)
	if err != nil {
		return err
	}
	if err := sock.Bind(e.bind); err != nil {
		return err
	}
	go func() {
		started <- true
		for {
			select {
			case <-stop:
				close(e.Rec)
				sock.Close()
				close(stopped)
				return
			case msg := <-e.Rec:
				topic := fmt.Sprintf("%s:%s", msg.EventType.Type(), msg.EventType)
				_, err := sock.SendMessage(topic, msg.ID, msg.Message)
				if err != nil {
					e.bus.Send(vault.SYS_ERR, fmt.Sprintf("ZMQEmitter: %v", err))
				}
			}
		}
	}()
	return nil
}

// Conductor is the surface of the instance returned by conductor.New that
// emitters use; the concrete type is unexported upstream.
type Conductor interface {
	Service(name string, service conductor.Service)
}

// Reads config and sets up any configured emitters
func SetupEmitters(cond Conductor, bus *vault.MessageBus, conf vault.Config) {
	for name, c := range conf.Emitters {
		e := NewZMQEmitter(c, bus)
		cond.Service(fmt.Sprintf("ZMQ emitter %s", e.bind), e)
		types := []vault.EventType{}
		for _, t := range c.Types {
			for _, x := range vault.EVENT_TYPES {
				if t == x.Type() {
					types = append(types, x)
				}
			}
		}
		if len(types) == 0 {
			fmt.Printf("⚠️  Emitter %s: no valid message types configured\n", name)
			continue
		}
		bus.Register(e, types...)
	}
}
