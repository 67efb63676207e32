package mirror

import (
	"nodemirror/mutation"
	"nodemirror/report"
)

// applyIndexClient keeps the known server set unique and only lets the
// connected slot point at a known server. Removing the server currently
// connected is rejected by the invariant check; the index client reports the
// disconnect first.
func applyIndexClient(ic report.IndexClientReport, m mutation.IndexClientReportMutation) (report.IndexClientReport, error) {
	switch x := m.(type) {
	case mutation.AddIndexServer:
		if ic.IndexServers.Has(x.Server.PublicKey) {
			return ic, ErrDuplicateKey
		}
		ic.IndexServers = ic.IndexServers.With(x.Server.PublicKey, x.Server)
	case mutation.RemoveIndexServer:
		if !ic.IndexServers.Has(x.PublicKey) {
			return ic, ErrUnknownKey
		}
		ic.IndexServers = ic.IndexServers.Without(x.PublicKey)
	case mutation.SetConnectedServer:
		switch s := x.Server.(type) {
		case report.NotConnected:
		case report.ConnectedServer:
			if !ic.IndexServers.Has(s.PublicKey) {
				return ic, ErrUnknownKey
			}
		default:
			return ic, ErrMalformedUnion
		}
		ic.ConnectedServer = x.Server
	case mutation.UnknownIndexClient:
	default:
		return ic, ErrMalformedUnion
	}
	return ic, nil
}
