package main

import (
	"bufio"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"

	"github.com/charmbracelet/log"

	"TraceSpectra/pkg/tracefile"
)

func main() {
	outputFile := flag.String("o", "test.tr", "Output trace file path")
	flowCount := flag.Int("flows", 20, "Number of flows to generate")
	packetCount := flag.Int("c", 100, "Packets per flow")
	hops := flag.Int("hops", 3, "Number of nodes each packet traverses")
	udp := flag.Bool("udp", false, "Emit UDP queue-layout lines instead of TCP flow-layout lines")
	dropRate := flag.Float64("drop", 0, "Probability that a packet is dropped at its first hop")
	seed := flag.Int64("seed", 1, "Random seed")
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))
	log.Infof("Generating %d flows of %d packets into %s...", *flowCount, *packetCount, *outputFile)

	var events []tracefile.Line
	for f := 0; f < *flowCount; f++ {
		srcPort := uint16(49153 + f)
		dstPort := uint16(10)
		if f%2 == 1 {
			dstPort = 9
		}
		base := tracefile.Line{
			SrcIP:   fmt.Sprintf("10.1.%d.1", f%250+1),
			DstIP:   fmt.Sprintf("10.2.%d.2", f%250+1),
			SrcPort: srcPort,
			DstPort: dstPort,
			Device:  1,
		}
		start := rng.Float64()
		for p := 0; p < *packetCount; p++ {
			t := start + float64(p)*0.0001 + rng.Float64()*0.00005
			if *dropRate > 0 && rng.Float64() < *dropRate {
				l := base
				l.Marker, l.Time, l.Node = 'd', t, 0
				events = append(events, l)
				continue
			}
			for h := 0; h < *hops; h++ {
				queueing := rng.Float64() * 0.0002
				for _, m := range []struct {
					marker byte
					at     float64
					node   int
				}{
					{'+', t, h},
					{'-', t + queueing, h},
					{'r', t + queueing + 0.00001, h + 1},
				} {
					l := base
					l.Marker, l.Time, l.Node = m.marker, m.at, m.node
					events = append(events, l)
				}
				t += queueing + 0.00001
			}
		}
	}

	sort.SliceStable(events, func(i, j int) bool { return events[i].Time < events[j].Time })

	f, err := os.Create(*outputFile)
	if err != nil {
		log.Fatalf("Failed to create output file: %v", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for i, ev := range events {
		if (i+1)%100000 == 0 {
			log.Infof("Wrote %d lines...", i+1)
		}
		line := ev.TCP()
		if *udp {
			line = ev.UDP()
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			log.Fatalf("Failed to write line: %v", err)
		}
	}
	if err := w.Flush(); err != nil {
		log.Fatalf("Failed to flush output: %v", err)
	}

	log.Infof("Successfully wrote %d lines into %s.", len(events), *outputFile)
}
