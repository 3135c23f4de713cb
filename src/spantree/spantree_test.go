package spantree

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mosaicnetworks/spantree/src/config"
	"github.com/mosaicnetworks/spantree/src/history"
	"github.com/mosaicnetworks/spantree/src/node"
	"github.com/mosaicnetworks/spantree/src/peers"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePeers(t *testing.T, dir string, ps *peers.PeerSet) {
	require.NoError(t, peers.NewJSONPeerSet(dir).Write(ps.Peers))
}

func tempDir(t *testing.T) string {
	dir, err := ioutil.TempDir("", "spantree")
	require.NoError(t, err)
	return dir
}

func testConfig(t *testing.T, dir string, id int, addr string) *config.Config {
	conf := config.NewTestConfig(t, logrus.InfoLevel)
	conf.SetDataDir(dir)
	conf.ID = id
	conf.BindAddr = addr
	conf.NoService = true
	return conf
}

func TestInitPeersErrors(t *testing.T) {
	dir := tempDir(t)
	defer os.RemoveAll(dir)

	engine := NewSpantree(testConfig(t, dir, 0, "127.0.0.1:0"))

	// no peers.json
	assert.Error(t, engine.initPeers())

	// asymmetric topology
	writePeers(t, dir, peers.NewPeerSet([]*peers.Peer{
		peers.NewPeer(0, "a", 1),
		peers.NewPeer(1, "b"),
	}))
	assert.Error(t, engine.initPeers())

	// disconnected topology
	writePeers(t, dir, peers.NewPeerSet([]*peers.Peer{
		peers.NewPeer(0, "a"),
		peers.NewPeer(1, "b"),
	}))
	assert.Error(t, engine.initPeers())

	// unknown id
	writePeers(t, dir, peers.Chain([]string{"a", "b"}))
	engine.Config.ID = 9
	assert.Error(t, engine.initPeers())

	engine.Config.ID = 1
	assert.NoError(t, engine.initPeers())
	assert.Equal(t, 2, engine.Peers.Len())
}

func TestInitStore(t *testing.T) {
	dir := tempDir(t)
	defer os.RemoveAll(dir)

	conf := testConfig(t, dir, 0, "127.0.0.1:0")

	engine := NewSpantree(conf)
	require.NoError(t, engine.initStore())
	_, ok := engine.Store.(*history.InmemStore)
	assert.True(t, ok)

	conf.Store = true
	engine = NewSpantree(conf)
	require.NoError(t, engine.initStore())
	defer engine.Store.Close()

	_, ok = engine.Store.(*history.BadgerStore)
	assert.True(t, ok)

	_, err := os.Stat(filepath.Join(dir, config.DefaultBadgerFile))
	assert.NoError(t, err)
}

func TestValidateConfig(t *testing.T) {
	conf := config.NewTestConfig(t, logrus.InfoLevel)
	conf.InboxSize = 0
	assert.Error(t, NewSpantree(conf).validateConfig())
}

// TestTCPNetwork runs three processes on a chain over TCP, one of them
// initially busy, until termination is detected.
func TestTCPNetwork(t *testing.T) {
	n := 3
	addrs := make([]string, n)
	for i := 0; i < n; i++ {
		addrs[i] = fmt.Sprintf("127.0.0.1:%d", 23400+i)
	}
	peerSet := peers.Chain(addrs)

	engines := []*Spantree{}
	for i := 0; i < n; i++ {
		dir := tempDir(t)
		defer os.RemoveAll(dir)

		writePeers(t, dir, peerSet)

		// transport goroutines may outlive the test, so keep them away
		// from t.Log
		conf := config.NewDefaultConfig()
		conf.LogLevel = "error"
		conf.SetDataDir(dir)
		conf.ID = i
		conf.BindAddr = addrs[i]
		conf.NoService = true
		conf.RoundInterval = 5 * time.Millisecond
		conf.Store = true
		if i == n-1 {
			conf.ActiveFor = 50 * time.Millisecond
		}

		engine := NewSpantree(conf)
		require.NoError(t, engine.Init())
		engines = append(engines, engine)
	}
	defer func() {
		for _, e := range engines {
			e.Shutdown()
		}
	}()

	for _, e := range engines {
		e.RunAsync()
	}

	require.Eventually(t, func() bool {
		for _, e := range engines {
			if e.Node.GetState() != node.Terminated {
				return false
			}
		}
		return true
	}, 10*time.Second, 10*time.Millisecond)

	res, ok := engines[0].Node.LastResult()
	require.True(t, ok)
	assert.True(t, res.Terminated)

	// the root recorded the terminating round
	r, err := engines[0].Node.GetRound(res.Round)
	require.NoError(t, err)
	assert.True(t, r.Evaluated)
	assert.True(t, r.Terminated)

	assert.Equal(t, 1, engines[2].Node.Tree().Parent)
}
