package parser

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"TraceSpectra/internal/config"
	"TraceSpectra/internal/model"
)

var (
	// ErrMalformedLine tags lines that fail tokenization or offset expectations.
	ErrMalformedLine = errors.New("malformed trace line")
	// ErrUnrecognizedMarker tags lines whose first token is not a known event marker.
	ErrUnrecognizedMarker = errors.New("unrecognized event marker")
	// ErrFiltered tags lines skipped by the pre-filter or the time window.
	ErrFiltered = errors.New("line filtered")
)

// MalformedError describes why a line was rejected. It matches ErrMalformedLine.
type MalformedError struct {
	Reason string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMalformedLine, e.Reason)
}

func (e *MalformedError) Unwrap() error {
	return ErrMalformedLine
}

func malformed(format string, args ...interface{}) error {
	return &MalformedError{Reason: fmt.Sprintf(format, args...)}
}

// Parser turns raw trace lines into typed events using a fixed layout.
type Parser struct {
	layout  Layout
	maxTime float64
}

// New creates a parser for the configured layout.
func New(cfg config.ParserConfig) (*Parser, error) {
	layout, err := ResolveLayout(cfg)
	if err != nil {
		return nil, err
	}
	return NewWithLayout(layout, cfg.MaxTime), nil
}

// NewWithLayout creates a parser for an explicit layout. maxTime <= 0 disables the time window.
func NewWithLayout(layout Layout, maxTime float64) *Parser {
	return &Parser{layout: layout, maxTime: maxTime}
}

// Layout returns the layout in use.
func (p *Parser) Layout() Layout {
	return p.layout
}

// Parse converts one raw line into an event. The returned error matches one of
// ErrMalformedLine, ErrUnrecognizedMarker or ErrFiltered.
func (p *Parser) Parse(line string) (*model.Event, error) {
	if p.layout.RequiredSubstring != "" && !strings.Contains(line, p.layout.RequiredSubstring) {
		return nil, ErrFiltered
	}

	tokens := strings.Fields(line)
	if len(tokens) == 0 {
		return nil, malformed("empty line")
	}

	eventType, ok := model.ParseEventType(tokens[0])
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnrecognizedMarker, tokens[0])
	}
	offsets, ok := p.layout.Offsets[eventType]
	if !ok {
		return nil, malformed("layout %q has no offsets for marker %q", p.layout.Name, tokens[0])
	}

	need := max(offsets.maxIndex(), p.layout.SourceToken, 1)
	if need >= len(tokens) {
		return nil, malformed("marker %q needs at least %d tokens, got %d", tokens[0], need+1, len(tokens))
	}

	ts, err := ParseTimeLiteral(tokens[1])
	if err != nil {
		return nil, malformed("bad timestamp: %v", err)
	}
	if p.maxTime > 0 && ts > p.maxTime {
		return nil, ErrFiltered
	}

	srcPort, err := parsePort(tokens[offsets.SrcPort])
	if err != nil {
		return nil, malformed("bad source port: %v", err)
	}
	dstPort, err := parsePort(tokens[offsets.DstPort])
	if err != nil {
		return nil, malformed("bad destination port: %v", err)
	}

	ev := &model.Event{
		Type: eventType,
		Time: ts,
		Flow: model.FlowKey{
			Protocol: tokens[offsets.Protocol],
			SrcIP:    tokens[offsets.SrcIP],
			DstIP:    strings.TrimRight(tokens[offsets.DstIP], ")"),
			SrcPort:  srcPort,
			DstPort:  dstPort,
		},
	}
	if p.layout.SourceToken > 0 {
		ev.Source = tokens[p.layout.SourceToken]
		if p.layout.SourceDelimiter != "" {
			ev.Source, _, _ = strings.Cut(ev.Source, p.layout.SourceDelimiter)
		}
	}
	return ev, nil
}

// parsePort strips the parentheses ns-3 prints around header fields.
func parsePort(tok string) (uint16, error) {
	v, err := strconv.ParseUint(strings.Trim(tok, "()"), 10, 16)
	if err != nil {
		return 0, err
	}
	return uint16(v), nil
}

var unitSuffixes = []string{"ns", "us", "ms", "s"}

// ParseTimeLiteral converts a simulator time literal such as "+123456.0ns" or
// "0.5" to a number. The sign and unit suffix are stripped; the value keeps the
// literal's own unit. Only finite, non-negative values are accepted.
func ParseTimeLiteral(lit string) (float64, error) {
	s := strings.TrimSpace(lit)
	s = strings.TrimPrefix(s, "+")
	for _, unit := range unitSuffixes {
		if trimmed, ok := strings.CutSuffix(s, unit); ok {
			s = trimmed
			break
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid time literal %q", lit)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, fmt.Errorf("time literal %q is not a finite non-negative value", lit)
	}
	return v, nil
}
