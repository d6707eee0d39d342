package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/kyvra-tech/node-reward-monitor/internal/models"
	"github.com/kyvra-tech/node-reward-monitor/pkg/errors"
)

// SnapshotDecoder turns a zstd-compressed node list into a Snapshot
type SnapshotDecoder struct{}

func NewSnapshotDecoder() *SnapshotDecoder {
	return &SnapshotDecoder{}
}

// wireNode mirrors one element of the API response. Pointers distinguish absent fields
// from zero values.
type wireNode struct {
	ID          json.RawMessage    `json:"_id"`
	PubKey      *string            `json:"pubKey"`
	IsConnected *bool              `json:"isConnected"`
	TotalReward *float64           `json:"totalReward"`
	TodayReward *float64           `json:"todayReward"`
	Sessions    *[]json.RawMessage `json:"sessions"`
}

// streamReader remembers the first non-EOF error of the zstd stream so that decode
// failures can be told apart from decompression failures.
type streamReader struct {
	r   io.Reader
	err error
}

func (s *streamReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if err != nil && err != io.EOF && s.err == nil {
		s.err = err
	}
	return n, err
}

// Decode decompresses raw and parses the node list, streaming the whole way.
func (d *SnapshotDecoder) Decode(raw []byte) (models.Snapshot, error) {
	if len(raw) == 0 {
		return nil, errors.Wrap(errors.ErrDecompression, "empty response body")
	}

	zr, err := zstd.NewReader(bytes.NewReader(raw), zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, errors.Mark(errors.ErrDecompression, err)
	}
	defer zr.Close()

	stream := &streamReader{r: zr}
	snapshot, decodeErr := decodeNodes(json.NewDecoder(stream))

	// Drain the rest of the frame so corrupt or truncated tails are noticed even when the
	// JSON value was already complete.
	var trailing bool
	if decodeErr == nil {
		rest, _ := io.ReadAll(stream)
		trailing = len(bytes.TrimSpace(rest)) > 0
	}

	if stream.err != nil {
		return nil, errors.Mark(errors.ErrDecompression, stream.err)
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	if trailing {
		return nil, errors.Wrap(errors.ErrMalformedPayload, "unexpected data after node list")
	}
	return snapshot, nil
}

func decodeNodes(dec *json.Decoder) (models.Snapshot, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, errors.Mark(errors.ErrMalformedPayload, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return nil, errors.Wrapf(errors.ErrMalformedPayload, "expected a JSON array, got %v", tok)
	}

	snapshot := models.Snapshot{}
	seen := make(map[string]int)
	for i := 0; dec.More(); i++ {
		var wire wireNode
		if err := dec.Decode(&wire); err != nil {
			return nil, errors.Mark(errors.ErrMalformedPayload, fmt.Errorf("node %d: %w", i, err))
		}

		node, err := wire.record()
		if err != nil {
			return nil, errors.Wrapf(errors.ErrMalformedPayload, "node %d: %v", i, err)
		}
		if first, dup := seen[node.ID]; dup {
			return nil, errors.Wrapf(errors.ErrMalformedPayload, "node %d: duplicate _id %q (first seen at %d)", i, node.ID, first)
		}
		seen[node.ID] = i
		snapshot = append(snapshot, node)
	}

	if _, err := dec.Token(); err != nil {
		return nil, errors.Mark(errors.ErrMalformedPayload, err)
	}
	if dec.More() {
		return nil, errors.Wrap(errors.ErrMalformedPayload, "unexpected data after node list")
	}
	return snapshot, nil
}

func (w *wireNode) record() (models.NodeRecord, error) {
	id, err := parseNodeID(w.ID)
	if err != nil {
		return models.NodeRecord{}, err
	}

	switch {
	case w.PubKey == nil:
		return models.NodeRecord{}, fmt.Errorf("missing field pubKey")
	case w.IsConnected == nil:
		return models.NodeRecord{}, fmt.Errorf("missing field isConnected")
	case w.TotalReward == nil:
		return models.NodeRecord{}, fmt.Errorf("missing field totalReward")
	case w.TodayReward == nil:
		return models.NodeRecord{}, fmt.Errorf("missing field todayReward")
	case w.Sessions == nil:
		return models.NodeRecord{}, fmt.Errorf("missing field sessions")
	}

	return models.NodeRecord{
		ID:           id,
		PublicKey:    *w.PubKey,
		IsConnected:  *w.IsConnected,
		TotalReward:  *w.TotalReward,
		TodayReward:  *w.TodayReward,
		SessionCount: len(*w.Sessions),
	}, nil
}

// parseNodeID accepts string and numeric ids; numbers keep their JSON spelling.
func parseNodeID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", fmt.Errorf("missing field _id")
	}

	switch raw[0] {
	case '"':
		var id string
		if err := json.Unmarshal(raw, &id); err != nil {
			return "", fmt.Errorf("invalid _id: %w", err)
		}
		if id == "" {
			return "", fmt.Errorf("empty _id")
		}
		return id, nil
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		return string(raw), nil
	default:
		return "", fmt.Errorf("invalid _id type: %s", raw)
	}
}
