// Package flowstats reads and writes per-flow statistics in the FlowMonitor
// XML layout and summarizes loss, delay and jitter across simulation trials.
package flowstats

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrMalformedTime is returned when a time attribute cannot be parsed.
var ErrMalformedTime = errors.New("malformed time attribute")

// NanoTime is a time value in nanoseconds, written as "+1.5e+06ns".
type NanoTime float64

// Milliseconds converts the value to milliseconds.
func (t NanoTime) Milliseconds() float64 {
	return float64(t) / 1e6
}

// MarshalXMLAttr implements xml.MarshalerAttr.
func (t NanoTime) MarshalXMLAttr(name xml.Name) (xml.Attr, error) {
	return xml.Attr{
		Name:  name,
		Value: fmt.Sprintf("%+gns", float64(t)),
	}, nil
}

// UnmarshalXMLAttr implements xml.UnmarshalerAttr.
func (t *NanoTime) UnmarshalXMLAttr(attr xml.Attr) error {
	v, ok := strings.CutSuffix(attr.Value, "ns")
	if !ok {
		return fmt.Errorf("%w: %s=%q", ErrMalformedTime, attr.Name.Local, attr.Value)
	}

	f, err := strconv.ParseFloat(strings.TrimPrefix(v, "+"), 64)
	if err != nil {
		return fmt.Errorf("%w: %s=%q", ErrMalformedTime, attr.Name.Local, attr.Value)
	}

	*t = NanoTime(f)

	return nil
}

// Flow holds the statistics of one unidirectional flow.
type Flow struct {
	FlowID            uint32   `xml:"flowId,attr"`
	TimeFirstTxPacket NanoTime `xml:"timeFirstTxPacket,attr"`
	TimeFirstRxPacket NanoTime `xml:"timeFirstRxPacket,attr"`
	TimeLastTxPacket  NanoTime `xml:"timeLastTxPacket,attr"`
	TimeLastRxPacket  NanoTime `xml:"timeLastRxPacket,attr"`
	DelaySum          NanoTime `xml:"delaySum,attr"`
	JitterSum         NanoTime `xml:"jitterSum,attr"`
	LastDelay         NanoTime `xml:"lastDelay,attr"`
	TxBytes           uint64   `xml:"txBytes,attr"`
	RxBytes           uint64   `xml:"rxBytes,attr"`
	TxPackets         uint64   `xml:"txPackets,attr"`
	RxPackets         uint64   `xml:"rxPackets,attr"`
	LostPackets       uint64   `xml:"lostPackets,attr"`
	TimesForwarded    uint64   `xml:"timesForwarded,attr"`
}

// FlowMonitor is the root element of a statistics file.
type FlowMonitor struct {
	XMLName xml.Name `xml:"FlowMonitor"`
	Flows   []Flow   `xml:"FlowStats>Flow"`
}

// Decode reads a FlowMonitor document.
func Decode(r io.Reader) (*FlowMonitor, error) {
	doc := &FlowMonitor{}

	if err := xml.NewDecoder(r).Decode(doc); err != nil {
		return nil, fmt.Errorf("decoding flow monitor: %w", err)
	}

	return doc, nil
}

// Encode writes the flows as a FlowMonitor document.
func Encode(w io.Writer, flows []Flow) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}

	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")

	if err := enc.Encode(FlowMonitor{Flows: flows}); err != nil {
		return fmt.Errorf("encoding flow monitor: %w", err)
	}

	_, err := io.WriteString(w, "\n")

	return err
}
