package flowmon

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strconv"

	"TraceSpectra/internal/engine/parser"
	"TraceSpectra/internal/model"
)

type xmlDocument struct {
	Classifier []xmlClassifierFlow `xml:"Ipv4FlowClassifier>Flow"`
	Stats      []xmlStatsFlow      `xml:"FlowStats>Flow"`
}

type xmlClassifierFlow struct {
	FlowID             string `xml:"flowId,attr"`
	SourceAddress      string `xml:"sourceAddress,attr"`
	DestinationAddress string `xml:"destinationAddress,attr"`
	Protocol           string `xml:"protocol,attr"`
	SourcePort         string `xml:"sourcePort,attr"`
	DestinationPort    string `xml:"destinationPort,attr"`
}

type xmlStatsFlow struct {
	FlowID            string `xml:"flowId,attr"`
	TimeFirstTxPacket string `xml:"timeFirstTxPacket,attr"`
	TimeLastRxPacket  string `xml:"timeLastRxPacket,attr"`
}

// Document holds the two tables of a FlowMonitor export, fully materialized.
type Document struct {
	Classifier []model.ClassifierRecord
	Stats      []model.FlowStatsRecord
}

// Decode reads a FlowMonitor XML document.
func Decode(r io.Reader) (*Document, error) {
	var raw xmlDocument
	if err := xml.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode flow monitor XML: %w", err)
	}

	doc := &Document{
		Classifier: make([]model.ClassifierRecord, 0, len(raw.Classifier)),
		Stats:      make([]model.FlowStatsRecord, 0, len(raw.Stats)),
	}
	for _, f := range raw.Classifier {
		srcPort, err := strconv.ParseUint(f.SourcePort, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("classifier flow %s: bad sourcePort %q", f.FlowID, f.SourcePort)
		}
		dstPort, err := strconv.ParseUint(f.DestinationPort, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("classifier flow %s: bad destinationPort %q", f.FlowID, f.DestinationPort)
		}
		doc.Classifier = append(doc.Classifier, model.ClassifierRecord{
			FlowID:             f.FlowID,
			Protocol:           f.Protocol,
			SourceAddress:      f.SourceAddress,
			DestinationAddress: f.DestinationAddress,
			SourcePort:         uint16(srcPort),
			DestinationPort:    uint16(dstPort),
		})
	}
	for _, f := range raw.Stats {
		firstTx, err := parser.ParseTimeLiteral(f.TimeFirstTxPacket)
		if err != nil {
			return nil, fmt.Errorf("stats flow %s: timeFirstTxPacket: %w", f.FlowID, err)
		}
		lastRx, err := parser.ParseTimeLiteral(f.TimeLastRxPacket)
		if err != nil {
			return nil, fmt.Errorf("stats flow %s: timeLastRxPacket: %w", f.FlowID, err)
		}
		doc.Stats = append(doc.Stats, model.FlowStatsRecord{
			FlowID:      f.FlowID,
			TimeFirstTx: firstTx,
			TimeLastRx:  lastRx,
		})
	}
	return doc, nil
}

// DecodeFile reads the FlowMonitor XML document at path.
func DecodeFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open flow monitor file '%s': %w", path, err)
	}
	defer f.Close()

	doc, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}
