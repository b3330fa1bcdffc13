package labserver

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/netcanvas/internal/remote"
	"github.com/HerbHall/netcanvas/internal/version"
	"github.com/HerbHall/netcanvas/pkg/models"
)

const maxBodyBytes = 1 << 20

// Route is one endpoint below remote.BasePath.
type Route struct {
	Method  string
	Path    string
	Handler http.HandlerFunc
}

// Server serves a Lab over HTTP.
type Server struct {
	httpServer *http.Server
	lab        *Lab
	token      string
	logger     *zap.Logger
	mux        *http.ServeMux
}

// New creates a server for lab. When token is empty any bearer token is
// accepted; a request without one is always rejected.
func New(addr string, lab *Lab, token string, logger *zap.Logger) *Server {
	mux := http.NewServeMux()
	s := &Server{
		lab:    lab,
		token:  token,
		logger: logger.Named("labserver"),
		mux:    mux,
	}
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.mux.HandleFunc("GET /health", s.handleHealth)
	for _, route := range s.Routes() {
		pattern := fmt.Sprintf("%s %s%s", route.Method, remote.BasePath, route.Path)
		s.mux.Handle(pattern, s.authenticate(route.Handler))
		s.logger.Debug("mounted route", zap.String("pattern", pattern))
	}
	return s
}

// Routes lists the lab service API.
func (s *Server) Routes() []Route {
	return []Route{
		{Method: "GET", Path: "/topology/list", Handler: s.handleListTopologies},
		{Method: "POST", Path: "/topology/create", Handler: s.handleCreateTopology},
		{Method: "GET", Path: "/topology/{id}", Handler: s.handleGetTopology},
		{Method: "DELETE", Path: "/topology/{id}", Handler: s.handleDeleteTopology},
		{Method: "POST", Path: "/topology/{id}/activate", Handler: s.handleActivateTopology},
		{Method: "GET", Path: "/topology-validate", Handler: s.handleValidate},
		{Method: "POST", Path: "/node/{kind}", Handler: s.handleAddNode},
		{Method: "DELETE", Path: "/node/{kind}/{name}", Handler: s.handleDeleteNode},
		{Method: "PUT", Path: "/node/position", Handler: s.handlePosition},
		{Method: "PUT", Path: "/node/display-name", Handler: s.handleDisplayName},
		{Method: "PUT", Path: "/node/{kind}/ip", Handler: s.handleIP},
		{Method: "POST", Path: "/node/router/interface", Handler: s.handleConfigureInterface},
		{Method: "GET", Path: "/node/router/{name}/interfaces", Handler: s.handleInterfaces},
		{Method: "POST", Path: "/link", Handler: s.handleAddLink},
		{Method: "DELETE", Path: "/link", Handler: s.handleDeleteLink},
		{Method: "POST", Path: "/packet/trace/start", Handler: s.handleStartTrace},
		{Method: "GET", Path: "/packet/trace/{id}", Handler: s.handleGetTrace},
		{Method: "POST", Path: "/packet/ping", Handler: s.handlePing},
	}
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.logRequests(s.mux)
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("starting lab service", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("lab service: %w", err)
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down lab service")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) authenticate(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" ||
			(s.token != "" && subtle.ConstantTimeCompare([]byte(token), []byte(s.token)) != 1) {
			WriteProblem(w, Problem{
				Type:     ProblemTypeUnauthorized,
				Title:    "Unauthorized",
				Status:   http.StatusUnauthorized,
				Detail:   "Could not validate credentials",
				Instance: r.URL.Path,
			})
			return
		}
		next(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		w.Header().Set("X-Netcanvas-Version", version.Short())
		next.ServeHTTP(rec, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.String("request_id", r.Header.Get("X-Request-ID")),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return badRequest("Invalid request body: %v", err)
	}
	return nil
}

func pathID(r *http.Request) (int, error) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		return 0, badRequest("Invalid topology id %q", r.PathValue("id"))
	}
	return id, nil
}

func pathKind(r *http.Request) (models.DeviceKind, error) {
	kind, err := models.ParseDeviceKind(r.PathValue("kind"))
	if err != nil {
		return "", badRequest("Unknown node type %q", r.PathValue("kind"))
	}
	return kind, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "netcanvas-lab",
		"version": version.Map(),
	})
}

func (s *Server) handleListTopologies(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.lab.Topologies())
}

func (s *Server) handleCreateTopology(w http.ResponseWriter, r *http.Request) {
	var doc remote.TopologyPayload
	if err := decode(w, r, &doc); err != nil {
		writeError(w, r, err)
		return
	}
	id, err := s.lab.Create(doc)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.logger.Info("topology created", zap.Int("id", id), zap.String("name", doc.Name))
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "topology_id": id})
}

func (s *Server) handleGetTopology(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	doc, err := s.lab.Topology(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleDeleteTopology(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err == nil {
		err = s.lab.Delete(id)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeAck(w)
}

func (s *Server) handleActivateTopology(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err == nil {
		err = s.lab.Activate(id)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeAck(w)
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	res, err := s.lab.Validate()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleAddNode(w http.ResponseWriter, r *http.Request) {
	kind, err := pathKind(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var np remote.NodePayload
	if err := decode(w, r, &np); err != nil {
		writeError(w, r, err)
		return
	}
	ip, err := s.lab.AddNode(kind, np)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := map[string]any{"success": true, "name": np.Name, "ip": nil}
	if ip != "" {
		resp["ip"] = ip
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteNode(w http.ResponseWriter, r *http.Request) {
	kind, err := pathKind(r)
	if err == nil {
		err = s.lab.DeleteNode(kind, r.PathValue("name"))
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeAck(w)
}

func (s *Server) handlePosition(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string  `json:"name"`
		X    float64 `json:"x"`
		Y    float64 `json:"y"`
	}
	err := decode(w, r, &body)
	if err == nil {
		err = s.lab.MoveNode(body.Name, body.X, body.Y)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeAck(w)
}

func (s *Server) handleDisplayName(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name        string `json:"name"`
		DisplayName string `json:"display_name"`
	}
	err := decode(w, r, &body)
	if err == nil {
		err = s.lab.SetDisplayName(body.Name, body.DisplayName)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeAck(w)
}

func (s *Server) handleIP(w http.ResponseWriter, r *http.Request) {
	kind, err := pathKind(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var body struct {
		Name string `json:"name"`
		IP   string `json:"ip"`
	}
	err = decode(w, r, &body)
	if err == nil {
		err = s.lab.SetIP(kind, body.Name, body.IP)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeAck(w)
}

func (s *Server) handleConfigureInterface(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RouterName    string `json:"router_name"`
		InterfaceName string `json:"interface_name"`
		IPAddress     string `json:"ip_address"`
		SubnetMask    int    `json:"subnet_mask"`
	}
	err := decode(w, r, &body)
	if err == nil {
		err = s.lab.ConfigureInterface(body.RouterName, models.RouterInterface{
			Name:           body.InterfaceName,
			IP:             body.IPAddress,
			SubnetMaskBits: body.SubnetMask,
		})
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeAck(w)
}

func (s *Server) handleInterfaces(w http.ResponseWriter, r *http.Request) {
	ifaces, err := s.lab.Interfaces(r.PathValue("name"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "interfaces": ifaces})
}

func (s *Server) handleAddLink(w http.ResponseWriter, r *http.Request) {
	var body remote.LinkPayload
	err := decode(w, r, &body)
	if err == nil {
		err = s.lab.AddLink(body.Node1, body.Node2)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeAck(w)
}

func (s *Server) handleDeleteLink(w http.ResponseWriter, r *http.Request) {
	var body remote.LinkPayload
	err := decode(w, r, &body)
	if err == nil {
		err = s.lab.DeleteLink(body.Node1, body.Node2)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeAck(w)
}

func (s *Server) handleStartTrace(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Source       string `json:"source_node"`
		Destination  string `json:"destination_node"`
		PacketConfig struct {
			Protocol models.Protocol `json:"protocol"`
		} `json:"packet_config"`
	}
	if err := decode(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	id, err := s.lab.StartTrace(body.Source, body.Destination, body.PacketConfig.Protocol)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"trace_id": id})
}

func (s *Server) handleGetTrace(w http.ResponseWriter, r *http.Request) {
	res, err := s.lab.Trace(r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	var req remote.PingRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.lab.Ping(req.Source, req.DestinationIP, req.Count)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
