// Package capture decodes pcap files into the datagram stream the
// inference core consumes. It is the byte-source collaborator: it owns
// timestamps, directions and payload buffers; the core only sees
// ordered payloads.
package capture

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/banshee-data/framelens/internal/infer/corpus"
	"github.com/banshee-data/framelens/internal/monitoring"
)

// ErrNoDatagrams is returned when a capture decodes cleanly but
// contains no matching UDP payloads.
var ErrNoDatagrams = errors.New("capture: no UDP datagrams found")

// endpointKey identifies one side of a flow for direction assignment.
type endpointKey struct {
	ip   string
	port uint16
}

// ReadFile reads a legacy pcap file and returns its UDP payloads as
// datagrams ordered by capture timestamp. udpPort filters on either
// source or destination port; 0 accepts all UDP traffic. The first
// datagram's sender defines the client side of the flow.
func ReadFile(path string, udpPort int) (*corpus.Flow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("capture: open %s: %w", path, err)
	}
	defer f.Close()

	r, err := pcapgo.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("capture: read pcap header of %s: %w", path, err)
	}

	flow := &corpus.Flow{Protocol: 17}
	var client endpointKey
	packetCount := 0

	for {
		data, ci, err := r.ReadPacketData()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("capture: read packet %d: %w", packetCount+1, err)
		}
		packetCount++

		packet := gopacket.NewPacket(data, r.LinkType(), gopacket.Default)
		udpLayer := packet.Layer(layers.LayerTypeUDP)
		if udpLayer == nil {
			continue
		}
		udp, ok := udpLayer.(*layers.UDP)
		if !ok || len(udp.Payload) == 0 {
			continue
		}
		if udpPort != 0 && int(udp.SrcPort) != udpPort && int(udp.DstPort) != udpPort {
			continue
		}

		srcIP, dstIP := packetAddresses(packet)
		src := endpointKey{ip: srcIP, port: uint16(udp.SrcPort)}

		if len(flow.Datagrams) == 0 {
			client = src
			flow.SrcIP = srcIP
			flow.DstIP = dstIP
			flow.SrcPort = uint16(udp.SrcPort)
			flow.DstPort = uint16(udp.DstPort)
		}

		direction := corpus.ClientToServer
		if src != client {
			direction = corpus.ServerToClient
		}

		// The payload slice aliases the packet's own buffer: NewPacket with
		// the Default options decodes from a private copy of the data, so
		// keeping it is safe.
		flow.Datagrams = append(flow.Datagrams, corpus.Datagram{
			Timestamp: float64(ci.Timestamp.UnixNano()) / 1e9,
			Direction: direction,
			Payload:   udp.Payload,
		})
	}

	if len(flow.Datagrams) == 0 {
		return nil, fmt.Errorf("capture: %s: %w", path, ErrNoDatagrams)
	}

	// Capture tools usually emit in order, but merged captures are not
	// guaranteed to be; the core's corpus must be.
	sort.SliceStable(flow.Datagrams, func(i, j int) bool {
		return flow.Datagrams[i].Timestamp < flow.Datagrams[j].Timestamp
	})

	monitoring.Logf("capture: %s: %d packets read, %d UDP datagrams kept", path, packetCount, len(flow.Datagrams))
	return flow, nil
}

// packetAddresses extracts source and destination network addresses,
// empty when the packet has no network layer.
func packetAddresses(packet gopacket.Packet) (src, dst string) {
	net := packet.NetworkLayer()
	if net == nil {
		return "", ""
	}
	netFlow := net.NetworkFlow()
	return netFlow.Src().String(), netFlow.Dst().String()
}
