package ssh

import (
	"context"
	"fmt"
	"net"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/crypto/ssh"

	"github.com/imamik/reservoir/internal/util/async"
)

const (
	// ProbeCommand exits zero when / is not mounted from the second
	// partition, which is where the stock environment of a node lives.
	ProbeCommand = `! mount | grep -qE '^/dev/[[:alnum:]]+p?2 on / type'`

	defaultSudo = "sudo"
	rootUser    = "root"
)

var deviceName = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// FleetConfig describes how to reach reserved hosts.
type FleetConfig struct {
	// User is the unprivileged testbed account. Deployed hosts are always
	// reached as root.
	User       string
	PrivateKey []byte

	DialTimeout time.Duration
	MaxRetries  int
	RetryDelay  time.Duration

	// Sudo is the privilege escalation command used by GrantRoot.
	Sudo string

	HostKeyCallback ssh.HostKeyCallback
}

// Fleet runs commands on many hosts concurrently.
type Fleet struct {
	cfg FleetConfig
	log logr.Logger
}

// NewFleet validates cfg and returns a Fleet.
func NewFleet(cfg FleetConfig, log logr.Logger) (*Fleet, error) {
	if cfg.User == "" {
		return nil, fmt.Errorf("fleet user cannot be empty")
	}
	if _, err := ssh.ParsePrivateKey(cfg.PrivateKey); err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	if cfg.Sudo == "" {
		cfg.Sudo = defaultSudo
	}
	return &Fleet{cfg: cfg, log: log.WithName("ssh")}, nil
}

// Deployed probes every address and reports which ones run a deployed
// image. Unreachable hosts count as not deployed.
func (f *Fleet) Deployed(ctx context.Context, addresses []string) (map[string]bool, error) {
	results := async.Map(ctx, addresses, func(ctx context.Context, addr string) error {
		_, err := f.run(ctx, rootUser, addr, ProbeCommand)
		return err
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make(map[string]bool, len(addresses))
	for i, addr := range addresses {
		err := results[i]
		switch {
		case err == nil:
			out[addr] = true
		case IsExitError(err):
			out[addr] = false
		default:
			f.log.V(1).Info("probe failed, treating host as not deployed", "host", addr, "error", err.Error())
			out[addr] = false
		}
	}
	return out, nil
}

// GrantRoot copies the testbed user's authorized keys to root on every
// address.
func (f *Fleet) GrantRoot(ctx context.Context, addresses []string) error {
	cmd := fmt.Sprintf("cat ~/.ssh/authorized_keys | %s sh -c 'mkdir -p /root/.ssh && cat >> /root/.ssh/authorized_keys'", f.cfg.Sudo)
	errs := async.Map(ctx, addresses, func(ctx context.Context, addr string) error {
		_, err := f.run(ctx, f.cfg.User, addr, cmd)
		return err
	})
	return f.collect("grant root", addresses, errs)
}

// EnableDHCP brings up the given devices of each host and requests a lease
// on them. Hosts are reached as root.
func (f *Fleet) EnableDHCP(ctx context.Context, devices map[string][]string) error {
	addresses := make([]string, 0, len(devices))
	for addr := range devices {
		addresses = append(addresses, addr)
	}
	sort.Strings(addresses)

	errs := async.Map(ctx, addresses, func(ctx context.Context, addr string) error {
		cmd, err := dhcpCommand(devices[addr])
		if err != nil {
			return err
		}
		if cmd == "" {
			return nil
		}
		_, err = f.run(ctx, rootUser, addr, cmd)
		return err
	})
	return f.collect("enable dhcp", addresses, errs)
}

func dhcpCommand(devices []string) (string, error) {
	steps := make([]string, 0, len(devices))
	for _, d := range devices {
		if !deviceName.MatchString(d) {
			return "", fmt.Errorf("invalid device name %q", d)
		}
		steps = append(steps, fmt.Sprintf("ip link set dev %s up && dhclient %s", d, d))
	}
	return strings.Join(steps, " && "), nil
}

func (f *Fleet) collect(op string, addresses []string, errs []error) error {
	var result *multierror.Error
	for i, err := range errs {
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("%s on %s: %w", op, addresses[i], err))
			continue
		}
		f.log.V(1).Info(op, "host", addresses[i])
	}
	return result.ErrorOrNil()
}

func (f *Fleet) run(ctx context.Context, user, address, command string) (string, error) {
	host, port := splitAddress(address)
	client, err := NewClient(&Config{
		Host:            host,
		Port:            port,
		User:            user,
		PrivateKey:      f.cfg.PrivateKey,
		DialTimeout:     f.cfg.DialTimeout,
		MaxRetries:      f.cfg.MaxRetries,
		RetryDelay:      f.cfg.RetryDelay,
		HostKeyCallback: f.cfg.HostKeyCallback,
	})
	if err != nil {
		return "", err
	}
	return client.Execute(ctx, command)
}

// splitAddress accepts "host" or "host:port".
func splitAddress(address string) (string, int) {
	host, portStr, err := net.SplitHostPort(address)
	if err != nil {
		return address, 0
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return address, 0
	}
	return host, port
}
