package simulator

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-logr/logr/testr"
	"github.com/stretchr/testify/require"

	"github.com/imamik/reservoir/internal/platform/oar"
)

const testInventory = `
domain: grid5000.fr
sites:
  - uid: rennes
    production: {cidr: 172.16.96.0/20, gateway: 172.16.111.254, dns: 172.16.111.118}
    clusters:
      - {uid: paravance, nodes: 3, interfaces: [eth1, eth2]}
      - {uid: parasilo, nodes: 1}
    vlans:
      - {id: "4", kind: vlan-local, cidr: 10.24.0.0/18}
      - {id: "16", kind: vlan-global, cidr: 10.27.64.0/18, gateway: 10.27.127.254}
    subnets:
      - {kind: subnet-small, cidr: 10.158.0.0/21}
      - {kind: subnet-large, cidr: 10.160.0.0/16}
  - uid: lyon
    production: {cidr: 172.16.48.0/20, gateway: 172.16.63.254}
    clusters:
      - {uid: nova, nodes: 2}
fail_deploy: [paravance-3.rennes.grid5000.fr]
`

var t0 = time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)

// clock is a settable time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	client *oar.Client
	store  *Store
	clock  *clock
	url    string
}

func newTestEnv(t *testing.T, token string) *testEnv {
	t.Helper()

	inv, err := ParseInventory([]byte(testInventory))
	require.NoError(t, err)

	store, err := OpenStore(context.Background(), "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	c := &clock{now: t0}
	srv, err := NewServer(Options{Inventory: inv, Store: store, Token: token, Now: c.Now, Log: testr.New(t)})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &testEnv{
		client: oar.NewClient(ts.URL, oar.WithToken(token)),
		store:  store,
		clock:  c,
		url:    ts.URL,
	}
}
