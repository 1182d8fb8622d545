package main

import (
	"github.com/tjstebbing/conductor"

	vault "github.com/misterlabs/agentvault/pkg"
	"github.com/misterlabs/agentvault/pkg/event"
	"github.com/misterlabs/agentvault/pkg/ledger"
	"github.com/misterlabs/agentvault/pkg/receivers"
	"github.com/misterlabs/agentvault/pkg/signer"
	"github.com/misterlabs/agentvault/pkg/store"
	"github.com/misterlabs/agentvault/pkg/webapi"
)

func Server(conf vault.Config) {
	c := conductor.New(
		conductor.HookSignals(),
		conductor.Noisy(),
	)

	// Start the MessageBus Service
	bus := vault.NewMessageBus()
	c.Service("MessageBus", bus)

	// Set up all configured receivers
	receivers.SetUpReceivers(c, &bus, conf)

	// Set up configured ZMQ emitters
	event.SetupEmitters(c, &bus, conf)

	// Set up the chain index
	chain, err := ledger.NewBlockfrostIndex(conf)
	if err != nil {
		panic(err)
	}

	// Setup a Store
	db, err := store.NewSQLite(conf.Store.DBFile)
	if err != nil {
		panic(err)
	}
	defer db.Close()

	// Local signer is optional: without a key file, withdrawals must be
	// signed externally via the CLI/admin flows that carry a witness.
	var sig vault.Signer
	if conf.Signer.KeyFile != "" {
		s, err := signer.LoadKeyFile(conf.Signer.KeyFile)
		if err != nil {
			panic(err)
		}
		sig = s
	}

	api := vault.NewAPI(db, chain, sig, &bus, conf)

	// Start the Vault API
	p, err := webapi.NewWebAPI(conf, api)
	if err != nil {
		panic(err)
	}
	c.Service("Vault API", p)

	bus.Send(vault.SYS_STARTUP, "agentvault starting: network "+conf.AgentVault.Network)

	<-c.Start()
}
