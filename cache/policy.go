package cache

import (
	"fmt"
	"time"

	"github.com/jonwraymond/datahub/query"
)

// Policy decides whether a call may use the cache.
//
// A call whose lag parameters fall within LagWindow of the current time asks
// for data that may still change, so it is neither read from nor written to
// the cache.
type Policy struct {
	// LagParams names the date parameters checked against LagWindow.
	LagParams []string

	// LagWindow is how far back from now data is considered unstable.
	LagWindow time.Duration

	// Now overrides the clock. Nil means time.Now.
	Now func() time.Time
}

func (p Policy) now() time.Time {
	if p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

// Cacheable reports whether params are outside the lag window at now.
// Absent or empty lag parameters are ignored; unparsable ones are an error.
func (p Policy) Cacheable(params query.Params, now time.Time) (bool, error) {
	for _, name := range p.LagParams {
		raw := params[name]
		if raw == "" {
			continue
		}
		t, err := query.ParseTime(raw)
		if err != nil {
			return false, fmt.Errorf("%w: %s=%q", ErrLagValue, name, raw)
		}
		if now.Sub(t) <= p.LagWindow {
			return false, nil
		}
	}
	return true, nil
}

// Decision is the cache plan for one call.
type Decision struct {
	Read  bool
	Write bool
}

// Enabled reports whether the call touches the cache at all.
func (d Decision) Enabled() bool {
	return d.Read || d.Write
}

// Decide combines call options with the lag check.
//
//	options                     read  write
//	none                        yes   yes
//	force-refresh               no    yes
//	bypass-cache                no    no
//	bypass-cache+force-refresh  no    yes
//
// Either column is cleared when params are inside the lag window.
func (p Policy) Decide(opts query.Options, params query.Params) (Decision, error) {
	if opts.BypassCache && !opts.ForceRefresh {
		return Decision{}, nil
	}
	ok, err := p.Cacheable(params, p.now())
	if err != nil || !ok {
		return Decision{}, err
	}
	return Decision{Read: !opts.ForceRefresh, Write: true}, nil
}
