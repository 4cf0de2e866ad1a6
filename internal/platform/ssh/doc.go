// Package ssh runs commands on reserved hosts.
//
// A [Client] talks to one host and retries the dial until the host answers,
// which covers nodes that are still rebooting into a freshly imaged system.
// A [Fleet] fans a command out to many hosts at once and provides the few
// operations the provisioning pipeline needs: probing whether a host already
// runs a deployed image, granting root access, and bringing up secondary
// interfaces with DHCP.
//
// Host keys are not verified by default. Reserved nodes are reimaged between
// reservations and present a new key every time.
package ssh
