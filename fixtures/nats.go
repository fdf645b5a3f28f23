package fixtures

import (
	"errors"
	"fmt"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/ryanmoran/testbed/lifecycle"
)

// NATSReadyTimeout bounds how long StartServer waits for the embedded
// server to accept connections.
const NATSReadyTimeout = 5 * time.Second

// NATS runs embedded NATS servers and opens client connections to them.
type NATS struct {
	lifecycle.Base
	// JetStream enables JetStream on servers started afterwards, storing
	// streams in a temporary directory.
	JetStream bool

	ops  *lifecycle.Operations
	dirs tempDirs
}

// NewNATS returns a NATS fixture with JetStream disabled.
func NewNATS(m *lifecycle.Manager) *NATS {
	return &NATS{
		Base: lifecycle.Base{DisplayName: "nats"},
		ops:  m.Operations(),
		dirs: osTempDirs(),
	}
}

type natsInstance struct {
	server   *natsserver.Server
	storeDir string
	dirs     tempDirs
}

func (n natsInstance) shutdown() error {
	n.server.Shutdown()
	n.server.WaitForShutdown()
	return n.removeStore()
}

// StartServer starts a NATS server on a random localhost port. Connect with
// the server's ClientURL. Draining shuts the server down.
func (n *NATS) StartServer() (*natsserver.Server, error) {
	instance, err := execute(n.ops, "Start NATS server", "Shut down NATS server", n.startServer, natsInstance.shutdown)
	if err != nil {
		return nil, err
	}
	return instance.server, nil
}

func (n *NATS) startServer() (natsInstance, error) {
	opts := &natsserver.Options{
		Host:   "127.0.0.1",
		Port:   -1,
		NoLog:  true,
		NoSigs: true,
	}

	instance := natsInstance{dirs: n.dirs}
	if n.JetStream {
		dir, err := n.dirs.create("testbed-nats-")
		if err != nil {
			return natsInstance{}, err
		}
		opts.JetStream = true
		opts.StoreDir = dir
		instance.storeDir = dir
	}

	server, err := natsserver.NewServer(opts)
	if err != nil {
		return natsInstance{}, errors.Join(fmt.Errorf("failed to create NATS server: %w", err), instance.removeStore())
	}
	instance.server = server

	go server.Start()

	if !server.ReadyForConnections(NATSReadyTimeout) {
		return natsInstance{}, errors.Join(fmt.Errorf("NATS server not ready after %s", NATSReadyTimeout), instance.shutdown())
	}
	return instance, nil
}

func (n natsInstance) removeStore() error {
	if n.storeDir == "" {
		return nil
	}
	return n.dirs.remove(n.storeDir)
}

// Connect opens a client connection to url. Draining closes it.
func (n *NATS) Connect(url string) (*nats.Conn, error) {
	return execute(n.ops, fmt.Sprintf("Connect to NATS at %s", url), fmt.Sprintf("Close NATS connection to %s", url),
		func() (*nats.Conn, error) {
			return nats.Connect(url, nats.Name("testbed"))
		},
		func(nc *nats.Conn) error {
			nc.Close()
			return nil
		},
	)
}
