package models

// RouterInterface is a configured interface on a router device.
type RouterInterface struct {
	Name           string `json:"name"`
	IP             string `json:"ip"`
	SubnetMaskBits int    `json:"subnet_mask"`
}

// ValidationResult is the server's verdict on the active topology.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// Protocol selects the packet type used by a trace.
type Protocol string

const (
	ProtocolTCP  Protocol = "tcp"
	ProtocolUDP  Protocol = "udp"
	ProtocolICMP Protocol = "icmp"
)

// TraceHop is one step of a packet trace.
type TraceHop struct {
	Node    string  `json:"node"`
	Time    float64 `json:"time"`
	Action  string  `json:"action"`
	Details string  `json:"details"`
}

// TraceResult is the state of a packet trace as reported by the server.
type TraceResult struct {
	ID              string     `json:"id"`
	SourceNode      string     `json:"source_node"`
	DestinationNode string     `json:"destination_node"`
	State           string     `json:"state"`
	CurrentNode     string     `json:"current_node,omitempty"`
	Route           []string   `json:"route,omitempty"`
	Hops            []TraceHop `json:"hops"`
	Completed       bool       `json:"completed"`
	Success         bool       `json:"success"`
	Error           string     `json:"error,omitempty"`
}

// Done reports whether the trace has reached a terminal state.
func (r TraceResult) Done() bool {
	return r.Completed || r.Error != ""
}

// PingAttempt is the outcome of one echo request.
type PingAttempt struct {
	Seq     int     `json:"seq"`
	Success bool    `json:"success"`
	TimeMs  float64 `json:"time_ms,omitempty"`
	Error   string  `json:"error,omitempty"`
}

// PingResult aggregates the attempts of a ping run.
type PingResult struct {
	Source          string        `json:"source"`
	SourceIP        string        `json:"source_ip"`
	DestinationIP   string        `json:"destination_ip"`
	PacketsSent     int           `json:"packets_sent"`
	PacketsReceived int           `json:"packets_received"`
	PacketLoss      float64       `json:"packet_loss"`
	Results         []PingAttempt `json:"results"`
}
