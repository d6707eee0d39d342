package services

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/kyvra-tech/node-reward-monitor/internal/models"
)

const reportTimeLayout = "2006-01-02 15:04:05"

// ReportBuilder renders change and status reports as chat text
type ReportBuilder struct {
	offset    time.Duration
	keyPrefix int
	now       func() time.Time
}

func NewReportBuilder(offset time.Duration, keyPrefix int) *ReportBuilder {
	return &ReportBuilder{
		offset:    offset,
		keyPrefix: keyPrefix,
		now:       time.Now,
	}
}

// BuildChangeReport returns false when there is nothing to report.
func (b *ReportBuilder) BuildChangeReport(identity string, changes []models.Change) (*models.Report, bool) {
	if len(changes) == 0 {
		return nil, false
	}

	timestamp := b.timestamp()
	lines := b.header(identity, "[Node Change Monitor]", timestamp)
	lines = append(lines, "Changes:")
	for _, change := range changes {
		lines = append(lines, "- "+describeChange(change))
	}

	return &models.Report{
		Kind:      models.ReportChanges,
		Identity:  identity,
		Timestamp: timestamp,
		Text:      strings.Join(lines, "\n"),
	}, true
}

// BuildStatusReport summarises the whole snapshot.
func (b *ReportBuilder) BuildStatusReport(identity string, snapshot models.Snapshot) *models.Report {
	timestamp := b.timestamp()
	totals := snapshot.Totals()

	lines := b.header(identity, "[Node Status Report]", timestamp)
	lines = append(lines,
		fmt.Sprintf("Total nodes: %d", totals.Nodes),
		fmt.Sprintf("Online nodes: %d", totals.Online),
		"Total reward: "+formatAmount(totals.TotalReward),
		"Today reward: "+formatAmount(totals.TodayReward)+"\n",
		"Nodes:",
	)
	for _, node := range snapshot {
		lines = append(lines, fmt.Sprintf("- %s %s total:%s today:%s",
			truncateKey(node.PublicKey, b.keyPrefix),
			connectivity(node.IsConnected),
			formatAmount(node.TotalReward),
			formatAmount(node.TodayReward),
		))
	}

	return &models.Report{
		Kind:      models.ReportStatus,
		Identity:  identity,
		Timestamp: timestamp,
		Text:      strings.Join(lines, "\n"),
	}
}

func (b *ReportBuilder) header(identity, title, timestamp string) []string {
	var lines []string
	if identity != "" {
		lines = append(lines, "【"+identity+"】")
	}
	return append(lines, title, "Time: "+timestamp+"\n")
}

func (b *ReportBuilder) timestamp() string {
	return b.now().Add(b.offset).Format(reportTimeLayout)
}

func describeChange(c models.Change) string {
	switch c.Kind {
	case models.NodeAdded:
		return "New node: " + c.Key
	case models.NodeRemoved:
		return "Node removed: " + c.Key
	case models.ConnectivityChanged:
		return fmt.Sprintf("Node %s %s", c.Key, connectivity(c.Online()))
	case models.TotalRewardChanged:
		return fmt.Sprintf("Node %s total reward changed: %s", c.Key, formatDelta(c.Delta()))
	case models.TodayRewardChanged:
		return fmt.Sprintf("Node %s today reward changed: %s", c.Key, formatDelta(c.Delta()))
	case models.SessionCountChanged:
		return fmt.Sprintf("Node %s sessions changed: %d -> %d", c.Key, int(c.Before), int(c.After))
	default:
		return fmt.Sprintf("Node %s changed (%s)", c.Key, c.Kind)
	}
}

func connectivity(online bool) string {
	if online {
		return "online"
	}
	return "offline"
}

// truncateKey keeps the first n runes of key and marks the cut with "...".
func truncateKey(key string, n int) string {
	if n <= 0 {
		return key
	}
	runes := []rune(key)
	if len(runes) <= n {
		return key
	}
	return string(runes[:n]) + "..."
}

// formatAmount rounds to 8 decimals so float noise stays out of chat text.
func formatAmount(v float64) string {
	rounded := math.Round(v*1e8) / 1e8
	if rounded == 0 {
		rounded = 0 // drop negative zero
	}
	return strconv.FormatFloat(rounded, 'f', -1, 64)
}

func formatDelta(d float64) string {
	s := formatAmount(d)
	if !strings.HasPrefix(s, "-") && s != "0" {
		return "+" + s
	}
	return s
}
