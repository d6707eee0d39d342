package models

// NodeRecord is one node as reported by the node API
type NodeRecord struct {
	ID           string  `json:"id"`
	PublicKey    string  `json:"publicKey"`
	IsConnected  bool    `json:"isConnected"`
	TotalReward  float64 `json:"totalReward"`
	TodayReward  float64 `json:"todayReward"`
	SessionCount int     `json:"sessionCount"`
}

// Snapshot is the node list observed by one poll, in API order
type Snapshot []NodeRecord

// SnapshotTotals aggregates a snapshot for status reporting
type SnapshotTotals struct {
	Nodes       int     `json:"nodes"`
	Online      int     `json:"online"`
	TotalReward float64 `json:"totalReward"`
	TodayReward float64 `json:"todayReward"`
}

// Totals sums rewards and counts connected nodes.
func (s Snapshot) Totals() SnapshotTotals {
	totals := SnapshotTotals{Nodes: len(s)}
	for _, node := range s {
		totals.TotalReward += node.TotalReward
		totals.TodayReward += node.TodayReward
		if node.IsConnected {
			totals.Online++
		}
	}
	return totals
}

// Index maps node ids to their position in the snapshot.
func (s Snapshot) Index() map[string]int {
	index := make(map[string]int, len(s))
	for i, node := range s {
		index[node.ID] = i
	}
	return index
}

// Clone returns a copy that shares no backing array with s.
func (s Snapshot) Clone() Snapshot {
	if s == nil {
		return nil
	}
	out := make(Snapshot, len(s))
	copy(out, s)
	return out
}

// Identity is one configured API credential
type Identity struct {
	Name       string `json:"name" yaml:"name"`
	Credential string `json:"-" yaml:"token"`
}
