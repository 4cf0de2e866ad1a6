package hcloud

import (
	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/reservoir/internal/config"
)

// RealClient implements Client using the Hetzner Cloud API. Every
// resource it creates is found again by name, so a reservation can be
// reloaded or released from another process.
type RealClient struct {
	client   *hcloud.Client
	timeouts *config.Timeouts
}

var _ Client = (*RealClient)(nil)

// ClientOption configures a RealClient.
type ClientOption func(*RealClient)

// WithTimeouts sets custom timeouts for the client.
func WithTimeouts(t *config.Timeouts) ClientOption {
	return func(c *RealClient) {
		c.timeouts = t
	}
}

// WithHCloudClient sets a custom hcloud client (useful for testing).
func WithHCloudClient(hc *hcloud.Client) ClientOption {
	return func(c *RealClient) {
		c.client = hc
	}
}

// NewRealClient creates a new RealClient with optional configuration.
// Timeouts come from the environment unless WithTimeouts is given.
func NewRealClient(token string, opts ...ClientOption) *RealClient {
	c := &RealClient{
		client:   hcloud.NewClient(hcloud.WithToken(token), hcloud.WithApplication("reservoir", "")),
		timeouts: config.LoadTimeouts(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HCloudClient returns the underlying hcloud.Client for calls the Client
// interface does not cover.
func (c *RealClient) HCloudClient() *hcloud.Client {
	return c.client
}
