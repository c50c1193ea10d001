// Copyright 2021-2022, Offchain Labs, Inc.
// For license information, see https://github.com/nitro/blob/master/LICENSE

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/offchainlabs/conductor/bridge"
	"github.com/offchainlabs/conductor/bridge/ethbridge"
	"github.com/offchainlabs/conductor/bridge/simbridge"
	"github.com/offchainlabs/conductor/cmd/genericconf"
	"github.com/offchainlabs/conductor/conductor"
	"github.com/offchainlabs/conductor/conductor/creditstore"
	"github.com/offchainlabs/conductor/util/redislock"
	"github.com/offchainlabs/conductor/util/redisutil"
)

// adapters is everything the conductor needs from the chain it runs against.
type adapters struct {
	inbox     bridge.AuthorizationInbox
	gateway   bridge.TokenGateway
	action    bridge.ValueAction
	reader    bridge.MessageLogReader
	addresses conductor.Addresses
	apis      []rpc.API
	dev       *DevAPI
	close     func()
}

func l1Adapters(ctx context.Context, config *ethbridge.Config) (*adapters, error) {
	client, err := ethclient.DialContext(ctx, config.URL)
	if err != nil {
		return nil, fmt.Errorf("connecting to L1 at %s: %w", config.URL, err)
	}
	l1, err := ethbridge.NewL1(ctx, client, config)
	if err != nil {
		client.Close()
		return nil, err
	}
	gateway, err := l1.TokenGateway()
	if err != nil {
		client.Close()
		return nil, err
	}
	action, err := l1.Action()
	if err != nil {
		client.Close()
		return nil, err
	}
	d := l1.Deployment()
	log.Info("connected to L1", "url", config.URL, "self", l1.Self(), "messaging", d.Messaging)
	return &adapters{
		inbox:   l1.Inbox(),
		gateway: gateway,
		action:  action,
		reader:  l1.LogReader(),
		addresses: conductor.Addresses{
			Self:           l1.Self(),
			InputGateway:   d.InputGateway,
			Counterpart:    d.L2Counterpart,
			InputL2Gateway: d.InputL2Gateway,
		},
		close: client.Close,
	}, nil
}

func devAdapters() *adapters {
	f := simbridge.NewFixture()
	log.Warn("running against a simulated bridge", "self", f.Self, "inputToken", f.InputToken, "outputToken", f.OutputToken)
	dev := &DevAPI{fixture: f}
	return &adapters{
		inbox:   f.Inbox(),
		gateway: f.Gateway(),
		action:  f.Action(),
		reader:  f.Chain.LogReader(),
		addresses: conductor.Addresses{
			Self:           f.Self,
			InputGateway:   f.InputGateway,
			Counterpart:    simbridge.L2CounterpartAddress,
			InputL2Gateway: simbridge.InputL2GatewayAddress,
		},
		apis: []rpc.API{{
			Namespace: "dev",
			Version:   "1.0",
			Service:   dev,
			Public:    false,
		}},
		dev:   dev,
		close: func() {},
	}
}

type conductorNode struct {
	conductor *conductor.Conductor
	adapters  *adapters
	closeDB   func() error
	server    *http.Server
	rpcAddr   net.Addr
}

func newConductorNode(ctx context.Context, config *ConductorNodeConfig) (*conductorNode, error) {
	var a *adapters
	if config.Dev {
		a = devAdapters()
	} else {
		var err error
		a, err = l1Adapters(ctx, &config.L1)
		if err != nil {
			return nil, err
		}
	}
	node := &conductorNode{adapters: a, closeDB: func() error { return nil }}
	success := false
	defer func() {
		if !success {
			node.close()
		}
	}()

	store, closer, err := creditstore.Open(&config.Credits, config.DataDir)
	if err != nil {
		return nil, err
	}
	node.closeDB = closer.Close

	configFetcher := func() *conductor.Config { return &config.Conductor }

	var lock *redislock.Simple
	if config.Conductor.RedisLock.Enable {
		client, err := redisutil.RedisClientFromURL(config.Conductor.RedisURL)
		if err != nil {
			return nil, err
		}
		lock, err = redislock.NewSimple(client, func() *redislock.SimpleCfg { return &configFetcher().RedisLock }, nil)
		if err != nil {
			return nil, err
		}
	}

	var source conductor.AmountSource
	if config.Conductor.Watcher.Enable {
		source = conductor.NewMessageWatcher(a.reader, a.addresses, func() *conductor.WatcherConfig { return &configFetcher().Watcher })
	}

	node.conductor, err = conductor.NewConductor(configFetcher, a.inbox, a.gateway, a.action, store, lock, source)
	if err != nil {
		return nil, err
	}
	if a.dev != nil {
		a.dev.sent = node.conductor.Trigger
	}

	if config.HTTP.Addr != "" {
		apis := append(node.conductor.APIs(), a.apis...)
		node.server, node.rpcAddr, err = startRPCServer(&config.HTTP, apis)
		if err != nil {
			return nil, err
		}
	}
	success = true
	return node, nil
}

func startRPCServer(config *genericconf.HTTPConfig, apis []rpc.API) (*http.Server, net.Addr, error) {
	rpcServer := rpc.NewServer()
	for _, api := range apis {
		if err := rpcServer.RegisterName(api.Namespace, api.Service); err != nil {
			return nil, nil, err
		}
	}
	listener, err := net.Listen("tcp", fmt.Sprintf("%s:%d", config.Addr, config.Port))
	if err != nil {
		return nil, nil, err
	}
	srv := &http.Server{
		Handler:           rpcServer,
		ReadTimeout:       config.Timeouts.ReadTimeout,
		ReadHeaderTimeout: config.Timeouts.ReadHeaderTimeout,
		WriteTimeout:      config.Timeouts.WriteTimeout,
		IdleTimeout:       config.Timeouts.IdleTimeout,
	}
	go func() {
		err := srv.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("rpc server stopped", "err", err)
		}
	}()
	log.Info("serving rpc", "addr", listener.Addr())
	return srv, listener.Addr(), nil
}

func (n *conductorNode) Start(ctx context.Context) {
	n.conductor.Start(ctx)
}

func (n *conductorNode) StopAndWait() {
	if n.server != nil {
		if err := n.server.Shutdown(context.Background()); err != nil {
			log.Warn("error shutting down rpc server", "err", err)
		}
	}
	if n.conductor != nil {
		n.conductor.StopAndWait()
	}
	n.close()
}

func (n *conductorNode) close() {
	if err := n.closeDB(); err != nil {
		log.Error("error closing credit store", "err", err)
	}
	n.adapters.close()
}
