package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/HerbHall/netcanvas/pkg/models"
)

type memCreds struct {
	mu      sync.Mutex
	token   string
	cleared int
}

func (m *memCreds) Token(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, nil
}

func (m *memCreds) ClearCredentials(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	m.cleared++
	return nil
}

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) (*Client, *memCreds) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	creds := &memCreds{token: "opaque-token"}
	return New(srv.URL, creds, zap.NewNop(), opts...), creds
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestClient_SendsBearerAndRequestID(t *testing.T) {
	var gotAuth, gotRequestID, gotPath string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get("X-Request-ID")
		gotPath = r.URL.Path
		writeJSON(w, http.StatusOK, []models.Topology{{ID: 1, Name: "lab", IsActive: true}})
	})

	topos, err := c.ListTopologies(context.Background())
	require.NoError(t, err)
	require.Len(t, topos, 1)
	assert.Equal(t, "lab", topos[0].Name)
	assert.Equal(t, "Bearer opaque-token", gotAuth)
	assert.NotEmpty(t, gotRequestID)
	assert.Equal(t, "/api/network/topology/list", gotPath)
}

func TestClient_UnauthorizedClearsCredentials(t *testing.T) {
	c, creds := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Could not validate credentials"})
	})

	_, err := c.ListTopologies(context.Background())
	require.ErrorIs(t, err, ErrAuthExpired)
	assert.Equal(t, 1, creds.cleared)
	tok, _ := creds.Token(context.Background())
	assert.Empty(t, tok)
}

func TestClient_MissingTokenSkipsRequest(t *testing.T) {
	calls := 0
	c, creds := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		writeJSON(w, http.StatusOK, []models.Topology{})
	})
	creds.token = ""

	_, err := c.ListTopologies(context.Background())
	require.ErrorIs(t, err, ErrAuthExpired)
	assert.Zero(t, calls)
}

func TestClient_ExpiredJWTSkipsRequest(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	calls := 0
	c, creds := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		writeJSON(w, http.StatusOK, []models.Topology{})
	}, WithClock(func() time.Time { return now }))

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(now.Add(-time.Second)),
	}).SignedString([]byte("k"))
	require.NoError(t, err)
	creds.token = tok

	_, err = c.ListTopologies(context.Background())
	require.ErrorIs(t, err, ErrAuthExpired)
	assert.Zero(t, calls)
	assert.Equal(t, 1, creds.cleared)
}

func TestClient_RejectionMessages(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   any
		want   string
	}{
		{"detail string", http.StatusBadRequest, map[string]string{"detail": "Host with name h1 already exists"}, "Host with name h1 already exists"},
		{"error field", http.StatusInternalServerError, map[string]string{"error": "mininet crashed"}, "mininet crashed"},
		{"problem title", http.StatusNotFound, map[string]any{"title": "Not Found", "status": 404}, "Not Found"},
		{"no body", http.StatusBadGateway, nil, "HTTP error! status: 502"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if tt.body == nil {
					w.WriteHeader(tt.status)
					return
				}
				writeJSON(w, tt.status, tt.body)
			})

			err := c.ActivateTopology(context.Background(), 3)
			var re *RejectedError
			require.ErrorAs(t, err, &re)
			assert.Equal(t, tt.status, re.StatusCode)
			assert.Equal(t, tt.want, re.Message)
			assert.Equal(t, tt.want, Message(err, "fallback"))
		})
	}
}

func TestClient_SuccessFalseIsRejection(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": "Node s9 not found"})
	})

	err := c.AddLink(context.Background(), "h1", "s9")
	var re *RejectedError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "Node s9 not found", re.Message)
}

func TestClient_NetworkUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	c := New(addr, &memCreds{token: "t"}, zap.NewNop())
	_, err := c.ListTopologies(context.Background())

	require.ErrorIs(t, err, ErrNetworkUnavailable)
	var re *RejectedError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "fallback", Message(err, "fallback"))
}

func TestClient_CancelledContext(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.GetTrace(ctx, "trace-1")
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, errors.Is(err, ErrNetworkUnavailable))
}

func TestClient_AddNodeBodies(t *testing.T) {
	var bodies []map[string]any
	var paths []string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var m map[string]any
		_ = json.Unmarshal(raw, &m)
		bodies = append(bodies, m)
		paths = append(paths, r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "name": m["name"], "ip": "10.0.0.5"})
	})

	host, err := c.AddNode(context.Background(), NewNode{Kind: models.DeviceKindHost, Name: "h42", DisplayName: "h42", Position: models.Position{X: 10, Y: 20}})
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5", host.IP)

	_, err = c.AddNode(context.Background(), NewNode{Kind: models.DeviceKindSwitch, Name: "s1", DisplayName: "s1"})
	require.NoError(t, err)

	require.Len(t, bodies, 2)
	assert.Equal(t, []string{"/api/network/node/host", "/api/network/node/switch"}, paths)
	ip, present := bodies[0]["ip"]
	assert.True(t, present, "host body carries an ip key")
	assert.Nil(t, ip, "host ip is null")
	assert.EqualValues(t, 10, bodies[0]["x"])
	_, present = bodies[1]["ip"]
	assert.False(t, present, "switch body omits ip")
}

func TestClient_TraceRequestShape(t *testing.T) {
	var body map[string]any
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&body)
		writeJSON(w, http.StatusOK, map[string]string{"trace_id": "trace-1"})
	})

	handle, err := c.StartTrace(context.Background(), TraceRequest{Source: "h1", Destination: "h2", Protocol: models.ProtocolTCP})
	require.NoError(t, err)
	assert.Equal(t, "trace-1", handle)

	cfg := body["packet_config"].(map[string]any)
	assert.Equal(t, "tcp", cfg["protocol"])
	assert.EqualValues(t, 64, cfg["ip"].(map[string]any)["ttl"])
	assert.Contains(t, cfg, "tcp")
	assert.Equal(t, "h2", body["destination_node"])
}

func TestTraceRequest_PortBlockForEveryProtocol(t *testing.T) {
	tests := []struct {
		name  string
		proto models.Protocol
		key   string
	}{
		{"icmp", models.ProtocolICMP, "icmp"},
		{"udp", models.ProtocolUDP, "udp"},
		{"default is icmp", "", "icmp"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := json.Marshal(TraceRequest{Source: "h1", Destination: "h2", Protocol: tt.proto})
			require.NoError(t, err)
			var body struct {
				PacketConfig map[string]json.RawMessage `json:"packet_config"`
			}
			require.NoError(t, json.Unmarshal(raw, &body))

			assert.JSONEq(t, `"`+tt.key+`"`, string(body.PacketConfig["protocol"]))
			assert.JSONEq(t, `{"sport":0,"dport":0}`, string(body.PacketConfig[tt.key]))
		})
	}
}

func TestClient_RouterInterfacesNullIP(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/network/node/router/r1/interfaces", r.URL.Path)
		_, _ = io.WriteString(w, `{"success":true,"interfaces":[{"name":"r1-eth0","ip":"10.0.0.1/24","subnet_mask":24},{"name":"r1-eth1","ip":null,"subnet_mask":24}]}`)
	})

	ifaces, err := c.RouterInterfaces(context.Background(), "r1")
	require.NoError(t, err)
	require.Len(t, ifaces, 2)
	assert.Equal(t, "10.0.0.1/24", ifaces[0].IP)
	assert.Empty(t, ifaces[1].IP)
}

func TestClient_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	var status atomic.Int32
	status.Store(http.StatusOK)
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, int(status.Load()), map[string]string{"detail": "nope"})
	}, WithMetrics(m))

	_ = c.ActivateTopology(context.Background(), 1)
	status.Store(http.StatusBadRequest)
	_ = c.ActivateTopology(context.Background(), 1)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("topology.activate", outcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("topology.activate", outcomeRejected)))
}

func TestClient_RateLimitHonoursContext(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []models.Topology{})
	}, WithRateLimit(0.001, 1))

	_, err := c.ListTopologies(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.ListTopologies(ctx)
	require.Error(t, err)
}
