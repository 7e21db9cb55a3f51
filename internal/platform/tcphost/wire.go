package tcphost

import (
	"encoding/binary"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
)

const (
	// ReplyAccepted is sent by a host that takes the mission.
	ReplyAccepted = "MALMOOK"
	// ReplyBusy is sent by a host that is already running a mission.
	ReplyBusy = "MALMOBUSY"

	maxFrameSize = 16 << 20
)

var errFrameTooLarge = errors.New("frame exceeds maximum size")

// WriteFrame writes a length-prefixed frame.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > maxFrameSize {
		return errFrameTooLarge
	}
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(payload)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// ReadFrame reads one length-prefixed frame.
func ReadFrame(r io.Reader) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if n > maxFrameSize {
		return nil, errFrameTooLarge
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// RecordingInit mirrors the recording request inside MissionInit.
type RecordingInit struct {
	Destination     string `xml:"Destination"`
	RecordRewards   bool   `xml:"RecordRewards"`
	FramesPerSecond int    `xml:"MP4>FrameRate,omitempty"`
	BitRate         int    `xml:"MP4>BitRate,omitempty"`
}

// MissionInit is the first frame sent to a candidate host.
type MissionInit struct {
	XMLName       xml.Name       `xml:"MissionInit"`
	ExperimentID  string         `xml:"ExperimentUID"`
	Role          int            `xml:"ClientRole"`
	ClientAddress string         `xml:"ClientAgentConnection>ClientIPAddress"`
	Recording     *RecordingInit `xml:"MissionRecordSpecification,omitempty"`
	MissionXML    string         `xml:"Mission"`
}

// EncodeMissionInit renders the init document.
func EncodeMissionInit(mi MissionInit) ([]byte, error) {
	b, err := xml.Marshal(mi)
	if err != nil {
		return nil, fmt.Errorf("encode mission init: %w", err)
	}
	return b, nil
}

// DecodeMissionInit parses an init document.
func DecodeMissionInit(b []byte) (MissionInit, error) {
	var mi MissionInit
	if err := xml.Unmarshal(b, &mi); err != nil {
		return mi, fmt.Errorf("decode mission init: %w", err)
	}
	return mi, nil
}

// Session event types.
const (
	EventBegin  = "begin"
	EventReward = "reward"
	EventError  = "error"
	EventEnd    = "end"
)

// Event is a session frame sent by the host after acceptance.
type Event struct {
	Type  string  `json:"type"`
	Value float64 `json:"value,omitempty"`
	Text  string  `json:"text,omitempty"`
}

// EncodeEvent marshals an event payload.
func EncodeEvent(ev Event) ([]byte, error) { return json.Marshal(ev) }

// DecodeEvent unmarshals an event payload.
func DecodeEvent(b []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(b, &ev); err != nil {
		return ev, fmt.Errorf("decode event: %w", err)
	}
	return ev, nil
}
