package capture

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/framelens/internal/infer/corpus"
	"github.com/banshee-data/framelens/internal/monitoring"
)

func init() {
	monitoring.SetLogger(nil)
}

type testPacket struct {
	srcIP, dstIP     string
	srcPort, dstPort uint16
	payload          []byte
	ts               time.Time
}

// writeTestPcap builds a legacy pcap file of Ethernet/IPv4/UDP packets.
func writeTestPcap(t *testing.T, packets []testPacket) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.pcap")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := pcapgo.NewWriter(f)
	require.NoError(t, w.WriteFileHeader(65536, layers.LinkTypeEthernet))

	for _, pkt := range packets {
		eth := &layers.Ethernet{
			SrcMAC:       net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55},
			DstMAC:       net.HardwareAddr{0x66, 0x77, 0x88, 0x99, 0xAA, 0xBB},
			EthernetType: layers.EthernetTypeIPv4,
		}
		ip := &layers.IPv4{
			Version:  4,
			IHL:      5,
			TTL:      64,
			Protocol: layers.IPProtocolUDP,
			SrcIP:    net.ParseIP(pkt.srcIP),
			DstIP:    net.ParseIP(pkt.dstIP),
		}
		udp := &layers.UDP{
			SrcPort: layers.UDPPort(pkt.srcPort),
			DstPort: layers.UDPPort(pkt.dstPort),
		}
		require.NoError(t, udp.SetNetworkLayerForChecksum(ip))

		buf := gopacket.NewSerializeBuffer()
		opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
		require.NoError(t, gopacket.SerializeLayers(buf, opts, eth, ip, udp, gopacket.Payload(pkt.payload)))

		data := buf.Bytes()
		ci := gopacket.CaptureInfo{Timestamp: pkt.ts, CaptureLength: len(data), Length: len(data)}
		require.NoError(t, w.WritePacket(ci, data))
	}
	return path
}

func TestReadFile(t *testing.T) {
	t.Parallel()

	base := time.Unix(1700000000, 0)
	path := writeTestPcap(t, []testPacket{
		{srcIP: "10.0.0.1", dstIP: "10.0.0.2", srcPort: 40000, dstPort: 9000, payload: []byte("hello"), ts: base},
		{srcIP: "10.0.0.2", dstIP: "10.0.0.1", srcPort: 9000, dstPort: 40000, payload: []byte("world!"), ts: base.Add(time.Millisecond)},
		{srcIP: "10.0.0.1", dstIP: "10.0.0.2", srcPort: 40000, dstPort: 9000, payload: []byte("again"), ts: base.Add(2 * time.Millisecond)},
	})

	flow, err := ReadFile(path, 0)
	require.NoError(t, err)
	require.Len(t, flow.Datagrams, 3)

	assert.Equal(t, "10.0.0.1", flow.SrcIP)
	assert.Equal(t, "10.0.0.2", flow.DstIP)
	assert.Equal(t, uint16(40000), flow.SrcPort)
	assert.Equal(t, uint16(9000), flow.DstPort)
	assert.Equal(t, uint8(17), flow.Protocol)

	assert.Equal(t, []byte("hello"), flow.Datagrams[0].Payload)
	assert.Equal(t, []byte("world!"), flow.Datagrams[1].Payload)
	assert.Equal(t, []byte("again"), flow.Datagrams[2].Payload)

	// The first sender defines the client side.
	assert.Equal(t, corpus.ClientToServer, flow.Datagrams[0].Direction)
	assert.Equal(t, corpus.ServerToClient, flow.Datagrams[1].Direction)
	assert.Equal(t, corpus.ClientToServer, flow.Datagrams[2].Direction)

	// Timestamps are preserved and ordered.
	assert.InDelta(t, 1700000000.0, flow.Datagrams[0].Timestamp, 1e-6)
	assert.Less(t, flow.Datagrams[0].Timestamp, flow.Datagrams[1].Timestamp)
}

func TestReadFilePortFilter(t *testing.T) {
	t.Parallel()

	base := time.Unix(1700000000, 0)
	path := writeTestPcap(t, []testPacket{
		{srcIP: "10.0.0.1", dstIP: "10.0.0.2", srcPort: 40000, dstPort: 9000, payload: []byte("keep"), ts: base},
		{srcIP: "10.0.0.1", dstIP: "10.0.0.3", srcPort: 40001, dstPort: 5353, payload: []byte("drop"), ts: base.Add(time.Millisecond)},
		{srcIP: "10.0.0.2", dstIP: "10.0.0.1", srcPort: 9000, dstPort: 40000, payload: []byte("keep2"), ts: base.Add(2 * time.Millisecond)},
	})

	flow, err := ReadFile(path, 9000)
	require.NoError(t, err)
	require.Len(t, flow.Datagrams, 2)
	assert.Equal(t, []byte("keep"), flow.Datagrams[0].Payload)
	assert.Equal(t, []byte("keep2"), flow.Datagrams[1].Payload)
}

func TestReadFileTimestampSort(t *testing.T) {
	t.Parallel()

	base := time.Unix(1700000000, 0)
	path := writeTestPcap(t, []testPacket{
		{srcIP: "10.0.0.1", dstIP: "10.0.0.2", srcPort: 1, dstPort: 2, payload: []byte("late"), ts: base.Add(time.Second)},
		{srcIP: "10.0.0.1", dstIP: "10.0.0.2", srcPort: 1, dstPort: 2, payload: []byte("early"), ts: base},
	})

	flow, err := ReadFile(path, 0)
	require.NoError(t, err)
	require.Len(t, flow.Datagrams, 2)
	assert.Equal(t, []byte("early"), flow.Datagrams[0].Payload)
	assert.Equal(t, []byte("late"), flow.Datagrams[1].Payload)
}

func TestReadFileNoDatagrams(t *testing.T) {
	t.Parallel()

	// A valid capture with no UDP payloads at all.
	path := writeTestPcap(t, nil)

	_, err := ReadFile(path, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoDatagrams)
}

func TestReadFileMissing(t *testing.T) {
	t.Parallel()

	_, err := ReadFile(filepath.Join(t.TempDir(), "absent.pcap"), 0)
	assert.Error(t, err)
}

func TestReadFileFeedsCorpus(t *testing.T) {
	t.Parallel()

	base := time.Unix(1700000000, 0)
	path := writeTestPcap(t, []testPacket{
		{srcIP: "10.0.0.1", dstIP: "10.0.0.2", srcPort: 1, dstPort: 2, payload: []byte{1, 2, 3, 4}, ts: base},
		{srcIP: "10.0.0.1", dstIP: "10.0.0.2", srcPort: 1, dstPort: 2, payload: []byte{5, 6}, ts: base.Add(time.Millisecond)},
	})

	flow, err := ReadFile(path, 0)
	require.NoError(t, err)

	c := corpus.FromDatagrams(flow.Datagrams, nil)
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, 6, c.TotalBytes())
}
