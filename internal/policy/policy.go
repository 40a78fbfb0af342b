// Package policy implements the network and resource policy objects from
// spec §6: the allow/block-list gate in front of the template engine's
// fetch() function, and the host-configurable byte budgets every bounded
// stdlib operation must respect and report on breach.
package policy

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/leynos/netsuke/internal/diag"
)

// Network is the policy object gating outbound fetch() calls. Block always
// wins over allow; DefaultDeny governs hosts matched by neither list.
type Network struct {
	AllowedSchemes map[string]bool
	AllowHosts     []string // patterns; a single leading "*." wildcard is supported
	BlockHosts     []string
	DefaultDeny    bool
}

// DefaultNetwork matches spec §6: only https, no allow-list entries, and
// default-deny (so an empty allow-list denies everything until the host
// configures one).
func DefaultNetwork() Network {
	return Network{
		AllowedSchemes: map[string]bool{"https": true},
		DefaultDeny:    true,
	}
}

// Check validates rawURL against the policy, failing fast before any
// connection is attempted (spec §6: "Policy violations fail before any
// connection is attempted").
func (n Network) Check(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return diag.Wrap(diag.Policy, "NetworkPolicyViolation", fmt.Errorf("invalid URL %q: %w", rawURL, err))
	}
	if !n.AllowedSchemes[u.Scheme] {
		return diag.New(diag.Policy, "NetworkPolicyViolation",
			fmt.Sprintf("scheme %q is not permitted by policy", u.Scheme))
	}
	host := u.Hostname()
	for _, pat := range n.BlockHosts {
		if matchHost(pat, host) {
			return diag.New(diag.Policy, "NetworkPolicyViolation",
				fmt.Sprintf("host %q is blocked by policy", host))
		}
	}
	for _, pat := range n.AllowHosts {
		if matchHost(pat, host) {
			return nil
		}
	}
	if n.DefaultDeny {
		return diag.New(diag.Policy, "NetworkPolicyViolation",
			fmt.Sprintf("host %q is not in the allow-list and default-deny is set", host))
	}
	return nil
}

// matchHost matches host against pattern, where pattern may carry a single
// leading "*." wildcard meaning "this host or any subdomain of it".
func matchHost(pattern, host string) bool {
	if strings.HasPrefix(pattern, "*.") {
		suffix := pattern[1:] // ".example.com"
		return host == pattern[2:] || strings.HasSuffix(host, suffix)
	}
	return pattern == host
}

// Budgets bounds the byte-size of impure stdlib operations (spec §6).
type Budgets struct {
	FetchMaxBytes           int64
	CommandCapturedMaxBytes int64
	CommandStreamMaxBytes   int64
}

// DefaultBudgets matches the defaults named in spec §6.
func DefaultBudgets() Budgets {
	return Budgets{
		FetchMaxBytes:           8 << 20,  // 8 MiB
		CommandCapturedMaxBytes: 1 << 20,  // 1 MiB
		CommandStreamMaxBytes:   64 << 20, // 64 MiB
	}
}
