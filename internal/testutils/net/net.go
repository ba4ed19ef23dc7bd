package net

import (
	"fmt"
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// SharedPortManager hands out ports which are not given to any other test of the process.
var SharedPortManager = &PortManager{usedPorts: make(map[int]struct{})}

type PortManager struct {
	mutex     sync.Mutex
	usedPorts map[int]struct{}
}

func (pm *PortManager) GetFreePort() (int, error) {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	for {
		l, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return 0, err
		}
		port := l.Addr().(*net.TCPAddr).Port
		if err := l.Close(); err != nil {
			return 0, err
		}
		if _, ok := pm.usedPorts[port]; !ok {
			pm.usedPorts[port] = struct{}{}
			return port, nil
		}
	}
}

func (pm *PortManager) GetRandomFreePort(t *testing.T) int {
	port, err := pm.GetFreePort()
	require.NoError(t, err)
	return port
}

// LocalAddress returns loopback "host:port" address the test can listen on.
func LocalAddress(t *testing.T) string {
	return fmt.Sprintf("127.0.0.1:%d", SharedPortManager.GetRandomFreePort(t))
}
