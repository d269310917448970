package retrieval

import (
	"encoding/json"
	"fmt"

	"github.com/skiff-run/skiff/pkg/types"
)

// MessageType identifies one kind of message on the duplex channel
type MessageType string

const (
	// MsgVolumeDownload asks a node to enumerate and return a volume
	MsgVolumeDownload MessageType = "volume:download"

	// MsgVolumeDownloadResponse carries the file list back
	MsgVolumeDownloadResponse MessageType = "volume:download:response"

	// MsgVolumeDownloadError reports a node-side failure
	MsgVolumeDownloadError MessageType = "volume:download:error"

	// MsgNodeHeartbeat refreshes a node's liveness timestamp. It carries
	// no payload and no correlation id; the transport knows the sender.
	MsgNodeHeartbeat MessageType = "node:heartbeat"
)

// Envelope is one message on the duplex channel. The correlation id pairs
// an outbound request with its eventual asynchronous reply.
type Envelope struct {
	Type          MessageType     `json:"type"`
	CorrelationID string          `json:"correlationId,omitempty"`
	Payload       json.RawMessage `json:"payload,omitempty"`
}

// DownloadRequest is the payload of a volume:download message
type DownloadRequest struct {
	VolumeName string `json:"volumeName"`
}

// DownloadResponse is the payload of a volume:download:response message
type DownloadResponse struct {
	VolumeName string                  `json:"volumeName"`
	Files      []types.VolumeFileEntry `json:"files"`
}

// DownloadErrorPayload is the payload of a volume:download:error message
type DownloadErrorPayload struct {
	VolumeName string `json:"volumeName"`
	Error      string `json:"error"`
}

// NewEnvelope builds an envelope with a JSON-serialized payload
func NewEnvelope(msgType MessageType, correlationID string, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to serialize %s payload: %w", msgType, err)
	}
	return Envelope{
		Type:          msgType,
		CorrelationID: correlationID,
		Payload:       data,
	}, nil
}

// DecodePayload deserializes an envelope payload into dst
func (e Envelope) DecodePayload(dst any) error {
	if err := json.Unmarshal(e.Payload, dst); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", e.Type, err)
	}
	return nil
}
