package parser

import (
	"fmt"
	"sort"

	"TraceSpectra/internal/config"
	"TraceSpectra/internal/model"
)

// Offsets holds the absolute token indices of the flow fields for one marker.
type Offsets struct {
	Protocol int
	SrcIP    int
	DstIP    int
	SrcPort  int
	DstPort  int
}

// maxIndex returns the highest token index the offsets refer to.
func (o Offsets) maxIndex() int {
	return max(o.Protocol, o.SrcIP, o.DstIP, o.SrcPort, o.DstPort)
}

// Layout describes where the fields of a trace line live, per event marker.
type Layout struct {
	Name              string
	Offsets           map[model.EventType]Offsets
	SourceToken       int
	SourceDelimiter   string
	RequiredSubstring string
}

// shifted returns offsets with every field moved by delta tokens.
func shifted(o Offsets, delta int) Offsets {
	return Offsets{
		Protocol: o.Protocol + delta,
		SrcIP:    o.SrcIP + delta,
		DstIP:    o.DstIP + delta,
		SrcPort:  o.SrcPort + delta,
		DstPort:  o.DstPort + delta,
	}
}

// FlowLayout matches point-to-point TCP traces without a source id. Receive
// lines carry no PPP header, so their fields start five tokens earlier.
func FlowLayout() Layout {
	tx := Offsets{Protocol: 20, SrcIP: 28, DstIP: 30, SrcPort: 32, DstPort: 34}
	return Layout{
		Name: "flow",
		Offsets: map[model.EventType]Offsets{
			model.EventEnqueue: tx,
			model.EventDequeue: tx,
			model.EventDrop:    tx,
			model.EventReceive: shifted(tx, -5),
		},
		SourceToken: -1,
	}
}

// QueueLayout matches UDP traces where token 2 is the device/queue path.
func QueueLayout() Layout {
	tx := Offsets{Protocol: 20, SrcIP: 28, DstIP: 30, SrcPort: 34, DstPort: 36}
	return Layout{
		Name: "queue",
		Offsets: map[model.EventType]Offsets{
			model.EventEnqueue: tx,
			model.EventDequeue: tx,
			model.EventDrop:    tx,
			model.EventReceive: shifted(tx, -5),
		},
		SourceToken:       2,
		SourceDelimiter:   "$ns3",
		RequiredSubstring: "UdpHeader",
	}
}

var presets = map[string]func() Layout{
	"flow":  FlowLayout,
	"queue": QueueLayout,
}

// LayoutNames returns the names of the built-in layouts.
func LayoutNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResolveLayout selects a layout by name, preferring a configured definition
// over a built-in preset.
func ResolveLayout(cfg config.ParserConfig) (Layout, error) {
	if def, ok := cfg.Layouts[cfg.Layout]; ok {
		return layoutFromDef(cfg.Layout, def)
	}
	if preset, ok := presets[cfg.Layout]; ok {
		return preset(), nil
	}
	return Layout{}, fmt.Errorf("unknown trace layout %q (built-in: %v)", cfg.Layout, LayoutNames())
}

func layoutFromDef(name string, def config.LayoutDef) (Layout, error) {
	if len(def.Offsets) == 0 {
		return Layout{}, fmt.Errorf("layout %q defines no offsets", name)
	}
	l := Layout{
		Name:              name,
		Offsets:           make(map[model.EventType]Offsets, len(def.Offsets)),
		SourceToken:       def.SourceToken,
		SourceDelimiter:   def.SourceDelimiter,
		RequiredSubstring: def.RequiredSubstring,
	}
	for marker, o := range def.Offsets {
		t, ok := model.ParseEventType(marker)
		if !ok {
			return Layout{}, fmt.Errorf("layout %q: unknown event marker %q", name, marker)
		}
		off := Offsets(o)
		if min(off.Protocol, off.SrcIP, off.DstIP, off.SrcPort, off.DstPort) < 2 {
			return Layout{}, fmt.Errorf("layout %q: offsets for %q overlap the marker/timestamp tokens", name, marker)
		}
		l.Offsets[t] = off
	}
	switch {
	case l.SourceToken <= 0:
		l.SourceToken = -1
	case l.SourceToken == 1:
		return Layout{}, fmt.Errorf("layout %q: source_token 1 is the timestamp", name)
	}
	return l, nil
}
