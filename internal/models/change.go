package models

// ChangeKind identifies what differs between two observations of a node
type ChangeKind int

const (
	NodeAdded ChangeKind = iota
	ConnectivityChanged
	TotalRewardChanged
	TodayRewardChanged
	SessionCountChanged
	NodeRemoved
)

var changeKindNames = map[ChangeKind]string{
	NodeAdded:           "node_added",
	ConnectivityChanged: "connectivity_changed",
	TotalRewardChanged:  "total_reward_changed",
	TodayRewardChanged:  "today_reward_changed",
	SessionCountChanged: "session_count_changed",
	NodeRemoved:         "node_removed",
}

func (k ChangeKind) String() string {
	if name, ok := changeKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Change is one detected difference. Connectivity is encoded as 0 (offline) / 1 (online)
// in Before and After.
type Change struct {
	Kind   ChangeKind `json:"kind"`
	NodeID string     `json:"nodeId"`
	Key    string     `json:"key"`
	Before float64    `json:"before"`
	After  float64    `json:"after"`
}

// Delta is After minus Before.
func (c Change) Delta() float64 {
	return c.After - c.Before
}

// Online reports the connectivity a ConnectivityChanged record moved to.
func (c Change) Online() bool {
	return c.After != 0
}

// ReportKind distinguishes the two report shapes
type ReportKind string

const (
	ReportNone    ReportKind = ""
	ReportStatus  ReportKind = "status"
	ReportChanges ReportKind = "changes"
)

// Report is a rendered chat message
type Report struct {
	Kind      ReportKind `json:"kind"`
	Identity  string     `json:"identity,omitempty"`
	Timestamp string     `json:"timestamp"`
	Text      string     `json:"text"`
}
