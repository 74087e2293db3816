package tracefile

import (
	"fmt"
	"strconv"

	"github.com/google/gopacket/layers"
)

// Line describes one synthetic trace event.
type Line struct {
	Marker  byte
	Time    float64
	Node    int
	Device  int
	SrcIP   string
	DstIP   string
	SrcPort uint16
	DstPort uint16
}

func (l Line) path(suffix string) string {
	return fmt.Sprintf("/NodeList/%d/DeviceList/%d/$ns3::PointToPointNetDevice/%s", l.Node, l.Device, suffix)
}

func (l Line) ipv4Header(proto layers.IPProtocol) string {
	return fmt.Sprintf("ns3::Ipv4Header (tos 0x0 DSCP Default ECN Not-ECT ttl 64 id 0 protocol %d offset (bytes) 0 flags [none] length: 1052 %s > %s)",
		uint8(proto), l.SrcIP, l.DstIP)
}

// prefix renders the marker, time, path and (for transmit-side events) the PPP header.
func (l Line) prefix() string {
	ts := strconv.FormatFloat(l.Time, 'f', -1, 64)
	if l.Marker == 'r' {
		return fmt.Sprintf("r %s %s", ts, l.path("MacRx"))
	}
	op := "Enqueue"
	switch l.Marker {
	case '-':
		op = "Dequeue"
	case 'd':
		op = "Drop"
	}
	return fmt.Sprintf("%c %s %s ns3::PppHeader (Point-to-Point Protocol: IP (0x0021))", l.Marker, ts, l.path("TxQueue/"+op))
}

// TCP renders the line in the layout produced by TCP point-to-point simulations.
func (l Line) TCP() string {
	return fmt.Sprintf("%s %s ns3::TcpHeader (%d > %d [ACK] Seq=1 Ack=1 Win=65535)",
		l.prefix(), l.ipv4Header(layers.IPProtocolTCP), l.SrcPort, l.DstPort)
}

// UDP renders the line in the layout produced by UDP queue simulations.
func (l Line) UDP() string {
	return fmt.Sprintf("%s %s ns3::UdpHeader (length: 1032 %d > %d) Payload (size=1024)",
		l.prefix(), l.ipv4Header(layers.IPProtocolUDP), l.SrcPort, l.DstPort)
}
