// Package inspect serves a read-only JSON view of a mirror. Every response is
// built from a single snapshot, so readers only see reports between whole
// mutation batches.
package inspect

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"nodemirror/crypto"
	"nodemirror/mirror"
	"nodemirror/observability"
	"nodemirror/report"
	"nodemirror/reportdoc"
	"nodemirror/wire"
)

// Viewer is the read side of a mirror. *mirror.Mirror implements it.
type Viewer interface {
	View() (mirror.View, error)
}

// Config captures the dependencies of the inspect server.
type Config struct {
	Mirror  Viewer
	Logger  *slog.Logger
	Metrics *observability.HTTPMetrics
}

// Server is the inspect HTTP API.
type Server struct {
	mirror  Viewer
	logger  *slog.Logger
	metrics *observability.HTTPMetrics
	router  http.Handler
}

// New builds the server and its router.
func New(cfg Config) *Server {
	s := &Server{mirror: cfg.Mirror, logger: cfg.Logger, metrics: cfg.Metrics}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.router = s.buildRouter()
	return s
}

// Handler returns the traced HTTP handler.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.router, "inspect")
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(s.observe)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", s.ready)
	r.Get("/report", s.getReport)
	r.Get("/report/digest", s.getDigest)
	r.Get("/friends", s.listFriends)
	r.Get("/friends/{pk}", s.getFriend)
	r.Get("/index-servers", s.listIndexServers)
	return r
}

func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.Observe(route, status, time.Since(start))
	})
}

type viewHeader struct {
	Session string `json:"session"`
	Applied uint64 `json:"applied"`
}

func header(v mirror.View) viewHeader {
	return viewHeader{Session: v.Session.String(), Applied: v.Applied}
}

// view loads the snapshot or writes the error response.
func (s *Server) view(w http.ResponseWriter) (mirror.View, bool) {
	v, err := s.mirror.View()
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, mirror.ErrDetached) || errors.Is(err, mirror.ErrInvalidated) {
			status = http.StatusServiceUnavailable
		} else {
			s.logger.Error("mirror view failed", slog.Any("error", err))
		}
		writeError(w, status, err)
		return v, false
	}
	return v, true
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	v, ok := s.view(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, header(v))
}

func (s *Server) getReport(w http.ResponseWriter, r *http.Request) {
	v, ok := s.view(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, struct {
		viewHeader
		Report reportdoc.Report `json:"report"`
	}{header(v), reportdoc.FromReport(v.Report)})
}

func (s *Server) getDigest(w http.ResponseWriter, r *http.Request) {
	v, ok := s.view(w)
	if !ok {
		return
	}
	digest := wire.Digest(v.Report)
	writeJSON(w, http.StatusOK, struct {
		viewHeader
		Digest string `json:"digest"`
	}{header(v), hex.EncodeToString(digest[:])})
}

type friendSummary struct {
	PublicKey  string `json:"publicKey"`
	Address    string `json:"address"`
	Name       string `json:"name"`
	Liveness   string `json:"liveness"`
	Status     string `json:"status"`
	Consistent bool   `json:"consistent"`
}

func (s *Server) listFriends(w http.ResponseWriter, r *http.Request) {
	v, ok := s.view(w)
	if !ok {
		return
	}
	friends := make([]friendSummary, 0, v.Report.Funder.Friends.Len())
	for pk, f := range v.Report.Funder.Friends.All() {
		doc := reportdoc.FromFriend(pk, f)
		friends = append(friends, friendSummary{
			PublicKey:  doc.PublicKey,
			Address:    crypto.EncodePublicKey(crypto.NodePrefix, pk),
			Name:       doc.Name,
			Liveness:   doc.Liveness,
			Status:     doc.Status,
			Consistent: doc.Channel.Consistent != nil,
		})
	}
	writeJSON(w, http.StatusOK, struct {
		viewHeader
		Friends []friendSummary `json:"friends"`
	}{header(v), friends})
}

// friendDetail adds the relay generations a friend may still see to the
// friend document.
type friendDetail struct {
	reportdoc.Friend
	RelayGenerations [][]reportdoc.Address `json:"relayGenerations"`
	Advertised       *bool                 `json:"advertised,omitempty"`
}

func (s *Server) getFriend(w http.ResponseWriter, r *http.Request) {
	pk, err := parseFriendKey(chi.URLParam(r, "pk"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var check []report.RelayAddress
	query := r.URL.Query()
	if query.Has("relays") {
		if check, err = parseRelaySet(query.Get("relays")); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	v, ok := s.view(w)
	if !ok {
		return
	}
	f, found := v.Report.Funder.Friends.Get(pk)
	if !found {
		writeError(w, http.StatusNotFound, mirror.ErrUnknownKey)
		return
	}

	history := mirror.HistoryOf(f.SentLocalRelays)
	detail := friendDetail{Friend: reportdoc.FromFriend(pk, f), RelayGenerations: [][]reportdoc.Address{}}
	for _, gen := range history.Generations() {
		addrs := reportdoc.FromAddresses(gen)
		if addrs == nil {
			addrs = []reportdoc.Address{}
		}
		detail.RelayGenerations = append(detail.RelayGenerations, addrs)
	}
	if query.Has("relays") {
		advertised := history.Advertised(check)
		detail.Advertised = &advertised
	}
	writeJSON(w, http.StatusOK, struct {
		viewHeader
		Friend friendDetail `json:"friend"`
	}{header(v), detail})
}

// parseFriendKey accepts a bech32 node key or a full-length hex key.
func parseFriendKey(raw string) (report.PublicKey, error) {
	if !strings.HasPrefix(raw, string(crypto.NodePrefix)+"1") {
		return parseHexKey(raw)
	}
	prefix, pk, err := crypto.DecodePublicKey(raw)
	if err != nil {
		return pk, err
	}
	if prefix != crypto.NodePrefix {
		return pk, fmt.Errorf("unexpected key prefix %q", prefix)
	}
	return pk, nil
}

// parseHexKey rejects short keys. Fixtures may abbreviate keys, clients may not.
func parseHexKey(raw string) (report.PublicKey, error) {
	if n := len(strings.TrimPrefix(raw, "0x")); n != 2*len(report.PublicKey{}) {
		return report.PublicKey{}, fmt.Errorf("public key %q: %d hex digits, want %d", raw, n, 2*len(report.PublicKey{}))
	}
	return reportdoc.ParseKey(raw)
}

// parseRelaySet reads a comma separated list of key@address pairs, in
// advertisement order. An empty value is the empty set.
func parseRelaySet(raw string) ([]report.RelayAddress, error) {
	if raw == "" {
		return nil, nil
	}
	var out []report.RelayAddress
	for _, item := range strings.Split(raw, ",") {
		key, addr, found := strings.Cut(item, "@")
		if !found {
			return nil, fmt.Errorf("relay %q: want key@address", item)
		}
		pk, err := parseHexKey(key)
		if err != nil {
			return nil, err
		}
		out = append(out, report.RelayAddress{PublicKey: pk, Address: addr})
	}
	return out, nil
}

func (s *Server) listIndexServers(w http.ResponseWriter, r *http.Request) {
	v, ok := s.view(w)
	if !ok {
		return
	}
	doc := reportdoc.FromReport(v.Report)
	servers := doc.IndexServers
	if servers == nil {
		servers = []reportdoc.NamedAddress{}
	}
	writeJSON(w, http.StatusOK, struct {
		viewHeader
		IndexServers    []reportdoc.NamedAddress `json:"indexServers"`
		ConnectedServer string                   `json:"connectedServer,omitempty"`
	}{header(v), servers, doc.ConnectedServer})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
