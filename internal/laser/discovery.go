package laser

import (
	"strings"
	"time"

	"laser-go-control/internal/visa"
)

// DiscoveryOptions configures the probe pass over candidate resources.
// Zero values take the defaults observed to work with the IPS board.
type DiscoveryOptions struct {
	BaudRate       int           // default 115200
	ProbeTimeout   time.Duration // default 250ms, short on purpose: this is a probe
	IdentQuery     string        // default "*IDN?"
	MatchSubstring string        // default "IPS"
	// Patterns are tried in order and their results merged. The defaults
	// prefer vendor-style USB serial names and fall back to any port.
	Patterns []string
}

func (o *DiscoveryOptions) applyDefaults() {
	if o.BaudRate == 0 {
		o.BaudRate = 115200
	}
	if o.ProbeTimeout == 0 {
		o.ProbeTimeout = 250 * time.Millisecond
	}
	if o.IdentQuery == "" {
		o.IdentQuery = "*IDN?"
	}
	if o.MatchSubstring == "" {
		o.MatchSubstring = "IPS"
	}
	if len(o.Patterns) == 0 {
		o.Patterns = []string{"*ttyACM*", "*ttyUSB*", "*ACM*", "*USB*"}
	}
}

// Candidate is one discovered laser: the resource it answered on and the
// identification string it replied with.
type Candidate struct {
	Resource       visa.ResourceInfo `json:"resource"`
	Identification string            `json:"idn"`
}

// ListCandidates enumerates serial resources matching the given patterns,
// merged and deduplicated by identifier. A pattern whose listing fails is
// logged and skipped. When no pattern matches anything, every known serial
// resource is returned as a last resort.
func (c *Controller) ListCandidates(patterns []string) []visa.ResourceInfo {
	seen := make(map[string]struct{})
	var out []visa.ResourceInfo

	merge := func(pattern string) {
		infos, err := c.rm.ListResources(pattern)
		if err != nil {
			c.logger.Debug("list resources failed", "pattern", pattern, "err", err)
			return
		}
		for _, info := range infos {
			if _, dup := seen[info.ID]; dup {
				continue
			}
			seen[info.ID] = struct{}{}
			out = append(out, info)
		}
	}

	for _, p := range patterns {
		merge(p)
	}
	if len(out) == 0 {
		merge("")
	}
	return out
}

// FindLasers probes every candidate resource and returns the ones whose
// identification reply contains the expected marker substring, keyed by
// resource identifier. A probe failure is never fatal to the overall call:
// the candidate is logged and skipped.
func (c *Controller) FindLasers(opts DiscoveryOptions) map[string]Candidate {
	opts.applyDefaults()

	candidates := c.ListCandidates(opts.Patterns)
	c.logger.Info("discovery: probing candidates", "count", len(candidates))

	found := make(map[string]Candidate)
	for _, info := range candidates {
		idn, err := c.probe(info.ID, opts)
		if err != nil {
			c.logger.Warn("discovery: probe failed", "resource", info.ID, "err", err)
			continue
		}
		c.logger.Info("discovery: candidate replied", "resource", info.ID, "idn", idn)
		if strings.Contains(idn, opts.MatchSubstring) {
			found[info.ID] = Candidate{Resource: info, Identification: idn}
		}
	}

	c.logger.Info("discovery: complete", "found", len(found))
	return found
}

// probe opens a transient session, applies best-effort configuration, and
// issues the identification query. The session is closed on every exit
// path: a leaked probe session would starve later discovery or the real
// connection on some transports.
func (c *Controller) probe(id string, opts DiscoveryOptions) (string, error) {
	session, err := c.rm.Open(id)
	if err != nil {
		return "", err
	}
	defer session.Close()

	// Configuration hints, non-fatal: not every transport exposes these.
	if err := session.SetBaudRate(opts.BaudRate); err != nil {
		c.logger.Debug("probe: set baud rate", "resource", id, "err", err)
	}
	if err := session.SetTermination(c.opts.WriteTermination, c.opts.ReadTermination); err != nil {
		c.logger.Debug("probe: set termination", "resource", id, "err", err)
	}
	if err := session.SetTimeout(opts.ProbeTimeout); err != nil {
		return "", err
	}

	idn, err := session.Query(opts.IdentQuery)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(idn), nil
}
