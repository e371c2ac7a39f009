// Package vendors assembles the connector registry from every supported
// channel type.
package vendors

import (
	"github.com/edirooss/chansync/internal/connector"
	"github.com/edirooss/chansync/internal/connector/airbnb"
	"github.com/edirooss/chansync/internal/connector/bookingcom"
	"github.com/edirooss/chansync/internal/connector/expedia"
	"go.uber.org/zap"
)

// Types lists the channel types a default registry serves.
var Types = []string{airbnb.Type, bookingcom.Type, expedia.Type}

// DefaultRegistry builds one connector per supported type. Types named in
// disabled are left out, so channels of that type report "connector not
// implemented".
func DefaultRegistry(deps connector.Deps, disabled ...string) *connector.Registry {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	deps.Log = deps.Log.Named("connector")

	skip := make(map[string]bool, len(disabled))
	for _, t := range disabled {
		skip[t] = true
	}

	reg := connector.NewRegistry()
	for _, c := range []connector.Connector{
		bookingcom.New(deps),
		expedia.New(deps),
		airbnb.New(deps),
	} {
		if skip[c.Type()] {
			deps.Log.Info("connector disabled", zap.String("type", c.Type()))
			continue
		}
		reg.MustRegister(c)
	}
	return reg
}
