// Package corpus owns the input layer of the inference data model.
//
// Responsibilities: immutable zero-copy views over captured datagram
// payloads. A PduRef is a sub-range of a shared payload buffer; a Corpus
// is an ordered set of PduRefs plus source metadata. Recursive inference
// builds nested corpora by re-slicing the same buffers, so views never
// copy payload bytes; only Concat, used by scoring, builds a copy.
//
// Dependency rule: corpus has no inward dependencies on the hypothesis,
// parsing or scoring layers.
package corpus

import "fmt"

// Direction records which side of a flow sent a datagram.
type Direction int

const (
	ClientToServer Direction = iota
	ServerToClient
)

func (d Direction) String() string {
	if d == ServerToClient {
		return "server_to_client"
	}
	return "client_to_server"
}

// Datagram is one captured payload with its capture metadata. The
// inference core ignores Timestamp and Direction; they are preserved for
// callers that want to correlate layers back to the capture.
type Datagram struct {
	Timestamp float64   `json:"timestamp"` // seconds since epoch
	FlowID    int       `json:"flow_id"`
	Direction Direction `json:"direction"`
	Payload   []byte    `json:"payload"`
}

// Flow groups the datagrams of a single 5-tuple.
type Flow struct {
	SrcIP     string     `json:"src_ip"`
	DstIP     string     `json:"dst_ip"`
	SrcPort   uint16     `json:"src_port"`
	DstPort   uint16     `json:"dst_port"`
	Protocol  uint8      `json:"protocol"`
	Datagrams []Datagram `json:"datagrams"`
}

// PduRef is an immutable byte range [Start, End) over a shared buffer.
// Multiple PduRefs may alias the same buffer with disjoint or nested
// ranges; the buffer itself is never modified after capture.
type PduRef struct {
	data  []byte
	start int
	end   int
}

// NewPduRef builds a view over data[start:end). Panics if the range is
// out of bounds; callers construct ranges from segments that are already
// validated against the parent PDU.
func NewPduRef(data []byte, start, end int) PduRef {
	if start < 0 || end < start || end > len(data) {
		panic(fmt.Sprintf("corpus: invalid pdu range [%d,%d) over %d bytes", start, end, len(data)))
	}
	return PduRef{data: data, start: start, end: end}
}

// Bytes returns the viewed range. The returned slice aliases the shared
// buffer; treat it as read-only.
func (p PduRef) Bytes() []byte { return p.data[p.start:p.end] }

// Buffer returns the full underlying buffer the view was built over.
// Sub-views created with Slice share this buffer, which is what keeps
// recursive SDU extraction zero-copy.
func (p PduRef) Buffer() []byte { return p.data }

// Start and End locate the view within the underlying buffer.
func (p PduRef) Start() int { return p.start }
func (p PduRef) End() int   { return p.end }

func (p PduRef) Len() int      { return p.end - p.start }
func (p PduRef) IsEmpty() bool { return p.end == p.start }

// Slice returns a sub-view [start, end) relative to this view, still
// backed by the same buffer.
func (p PduRef) Slice(start, end int) PduRef {
	if start < 0 || end < start || end > p.Len() {
		panic(fmt.Sprintf("corpus: invalid sub-range [%d,%d) of %d-byte pdu", start, end, p.Len()))
	}
	return PduRef{data: p.data, start: p.start + start, end: p.start + end}
}

// Meta describes where a corpus came from.
type Meta struct {
	Source     string `json:"source"`
	TotalBytes int    `json:"total_bytes"`
	PduCount   int    `json:"pdu_count"`
	FlowID     *int   `json:"flow_id,omitempty"`
}

// Corpus is an ordered sequence of PDUs under analysis. Immutable after
// construction.
type Corpus struct {
	Items []PduRef
	Meta  Meta
}

// New builds a corpus from pre-built refs, recomputing byte/count totals.
func New(items []PduRef, source string, flowID *int) *Corpus {
	total := 0
	for _, p := range items {
		total += p.Len()
	}
	return &Corpus{
		Items: items,
		Meta: Meta{
			Source:     source,
			TotalBytes: total,
			PduCount:   len(items),
			FlowID:     flowID,
		},
	}
}

// FromDatagrams builds a corpus of zero-copy views over the datagram
// payload buffers.
func FromDatagrams(datagrams []Datagram, flowID *int) *Corpus {
	items := make([]PduRef, 0, len(datagrams))
	for _, d := range datagrams {
		items = append(items, NewPduRef(d.Payload, 0, len(d.Payload)))
	}
	source := "flow_all"
	if flowID != nil {
		source = fmt.Sprintf("flow_%d", *flowID)
	}
	return New(items, source, flowID)
}

func (c *Corpus) Len() int      { return len(c.Items) }
func (c *Corpus) IsEmpty() bool { return len(c.Items) == 0 }

// TotalBytes is the sum of the lengths of all PDUs.
func (c *Corpus) TotalBytes() int { return c.Meta.TotalBytes }

// MeanPduLen returns the average PDU length in bytes, 0 for an empty
// corpus. The engine uses it as a recursion floor.
func (c *Corpus) MeanPduLen() float64 {
	if len(c.Items) == 0 {
		return 0
	}
	return float64(c.Meta.TotalBytes) / float64(len(c.Items))
}

// Concat returns the concatenation of all PDU bytes. This copies: it is
// used only by scoring, which needs contiguous buffers for entropy and
// compression measures.
func (c *Corpus) Concat() []byte {
	buf := make([]byte, 0, c.Meta.TotalBytes)
	for _, p := range c.Items {
		buf = append(buf, p.Bytes()...)
	}
	return buf
}
