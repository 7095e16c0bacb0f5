package protocol

// Peer is a supernode entry from the masternode-list snapshot.
// ExtKey equals Identity; it exists as a separate field because the chain
// node's `masternode list full` reply carries it under its own key and
// routing code reads it without caring which query populated it.
type Peer struct {
	Identity        Identity `json:"identity"`
	IPPort          string   `json:"ip_port"`
	Status          string   `json:"status"`
	ProtocolVersion string   `json:"protocol_version"`
	Rank            int      `json:"rank"`
	ExtKey          Identity `json:"ext_key"`
}

// StatusEnabled is the only status value filter_active accepts.
const StatusEnabled = "ENABLED"
