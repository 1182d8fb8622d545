package receivers

import (
	"context"
	"fmt"
	"log"

	"gopkg.in/natefinch/lumberjack.v2"

	vault "github.com/misterlabs/agentvault/pkg"
)

type MessageLogger struct {
	// MessageLogger receives vault.Message via Rec
	Rec chan vault.Message
	// and logs them via Log
	Log *log.Logger
}

// Implements vault.MessageSubscriber
func (l MessageLogger) GetChan() chan vault.Message {
	return l.Rec
}

// Implements conductor.Service
func (l MessageLogger) Run(started, stopped chan bool, stop chan context.Context) error {
	go func() {
		started <- true
		for {
			select {
			// handle stopping the service
			case <-stop:
				close(l.Rec)
				close(stopped)
				return
			case msg := <-l.Rec:
				l.Log.Printf("%s:%s (%s): %s\n",
					msg.EventType.Type(),
					msg.EventType,
					msg.ID,
					msg.Message)
			}
		}
	}()
	return nil
}

func NewMessageLogger(path string) MessageLogger {
	// create a MessageLogger
	l := MessageLogger{
		make(chan vault.Message, 1000),
		log.New(&lumberjack.Logger{
			Filename: path,
			Compress: true,
		}, "", log.Ltime|log.Lmicroseconds),
	}
	return l
}

// Reads config and sets up any configured loggers
func SetupLoggers(cond Conductor, bus *vault.MessageBus, conf vault.Config) {
	for name, c := range conf.Loggers {
		l := NewMessageLogger(c.Path)
		cond.Service(fmt.Sprintf("Logger %s", c.Path), l)
		types := resolveTypes(fmt.Sprintf("Logger %s", name), c.Types, func(format string, args ...any) {
			fmt.Printf("⚠️  "+format+"\n", args...)
		})
		bus.Register(l, types...)
	}
}
