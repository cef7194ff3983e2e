package types

import (
	"encoding/binary"
	"math"
)

// EmbeddingResult is what the embedding provider hands back for one text.
type EmbeddingResult struct {
	Vector   []float32 `json:"vector"`
	Model    string    `json:"model"`
	Provider string    `json:"provider"`
	Cached   bool      `json:"cached"`
}

// VectorPayload mirrors snippet/document metadata into the vector store so
// queries can filter server-side. The relational row stays the source of
// truth; this is a derived copy.
type VectorPayload struct {
	SnippetID      int64  `json:"snippet_id"`
	DocumentID     int64  `json:"document_id,omitempty"`
	TicketID       *int64 `json:"ticket_id,omitempty"`
	AssetID        *int64 `json:"asset_id,omitempty"`
	SiteID         *int64 `json:"site_id,omitempty"`
	MimeType       string `json:"mime_type,omitempty"`
	Label          string `json:"label,omitempty"`
	EmbeddingModel string `json:"embedding_model,omitempty"`
	CreatedAt      string `json:"created_at,omitempty"`
}

// VectorPoint is one point to upsert into the vector store. Its id equals
// the snippet id.
type VectorPoint struct {
	ID      int64         `json:"id"`
	Vector  []float32     `json:"vector"`
	Payload VectorPayload `json:"payload"`
}

// EncodeVector packs a float32 vector into little-endian bytes for the
// snippet embedding column.
func EncodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

// DecodeVector unpacks little-endian bytes back into a float32 vector.
// Trailing bytes that do not fill a full float are dropped.
func DecodeVector(b []byte) []float32 {
	n := len(b) / 4
	if n == 0 {
		return nil
	}
	v := make([]float32, n)
	for i := 0; i < n; i++ {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v
}
