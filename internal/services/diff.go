package services

import (
	"github.com/kyvra-tech/node-reward-monitor/internal/models"
)

// DiffEngine compares two snapshots of the same identity
type DiffEngine struct {
	reportRemoved bool
}

func NewDiffEngine(reportRemoved bool) *DiffEngine {
	return &DiffEngine{reportRemoved: reportRemoved}
}

// Diff lists the changes from previous to current. Changes follow current's order, and
// within a node the order connectivity, total reward, today reward, sessions. Removed
// nodes, when enabled, come last in previous's order.
func (d *DiffEngine) Diff(previous, current models.Snapshot) []models.Change {
	var changes []models.Change

	prevIndex := previous.Index()
	for _, node := range current {
		i, ok := prevIndex[node.ID]
		if !ok {
			changes = append(changes, models.Change{
				Kind:   models.NodeAdded,
				NodeID: node.ID,
				Key:    node.PublicKey,
			})
			continue
		}
		changes = append(changes, compareNode(previous[i], node)...)
	}

	if d.reportRemoved {
		curIndex := current.Index()
		for _, node := range previous {
			if _, ok := curIndex[node.ID]; ok {
				continue
			}
			changes = append(changes, models.Change{
				Kind:   models.NodeRemoved,
				NodeID: node.ID,
				Key:    node.PublicKey,
			})
		}
	}

	return changes
}

func compareNode(prev, cur models.NodeRecord) []models.Change {
	var changes []models.Change
	add := func(kind models.ChangeKind, before, after float64) {
		changes = append(changes, models.Change{
			Kind:   kind,
			NodeID: cur.ID,
			Key:    cur.PublicKey,
			Before: before,
			After:  after,
		})
	}

	if prev.IsConnected != cur.IsConnected {
		add(models.ConnectivityChanged, boolValue(prev.IsConnected), boolValue(cur.IsConnected))
	}
	if prev.TotalReward != cur.TotalReward {
		add(models.TotalRewardChanged, prev.TotalReward, cur.TotalReward)
	}
	if prev.TodayReward != cur.TodayReward {
		add(models.TodayRewardChanged, prev.TodayReward, cur.TodayReward)
	}
	if prev.SessionCount != cur.SessionCount {
		add(models.SessionCountChanged, float64(prev.SessionCount), float64(cur.SessionCount))
	}
	return changes
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
