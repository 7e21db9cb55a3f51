// Mission XML descriptor construction
package mission

import (
	"encoding/xml"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	namespace    = "http://ProjectMalmo.microsoft.com"
	xsiNamespace = "http://www.w3.org/2001/XMLSchema-instance"

	// DefaultSummaryPrefix is prepended to the trial index in the mission summary.
	DefaultSummaryPrefix = "Nom nom nom run #"
	// DefaultGenerator is a flat world with a raised stone floor.
	DefaultGenerator = "3;7,220*1,5*3,2;3;,biome_1"
)

// Params holds everything needed to describe the mission.
type Params struct {
	Summary       string
	Generator     string
	ArenaHalf     int
	FloorY        int
	CarpetColour  string
	TimeLimitMs   int
	AgentName     string
	Mode          string
	StartX        float64
	StartY        float64
	StartZ        float64
	VideoWidth    int
	VideoHeight   int
	TurnSpeedDegs int
	Rewards       RewardTable
}

// DefaultParams returns the parameters of the item-collection mission.
func DefaultParams() Params {
	return Params{
		Summary:       DefaultSummaryPrefix + "0",
		Generator:     DefaultGenerator,
		ArenaHalf:     50,
		FloorY:        226,
		CarpetColour:  "RED",
		TimeLimitMs:   15000,
		AgentName:     "The Hungry Caterpillar",
		Mode:          "Survival",
		StartX:        0.5,
		StartY:        227.0,
		StartZ:        0.5,
		VideoWidth:    480,
		VideoHeight:   320,
		TurnSpeedDegs: 240,
		Rewards:       DefaultRewardTable(),
	}
}

// Summary returns the per-trial mission summary.
func Summary(prefix string, trial int) string {
	return prefix + strconv.Itoa(trial)
}

// Document is the XML shape of a mission.
type Document struct {
	XMLName xml.Name      `xml:"Mission"`
	Xmlns   string        `xml:"xmlns,attr,omitempty"`
	XSI     string        `xml:"xmlns:xsi,attr,omitempty"`
	About   About         `xml:"About"`
	Server  ServerSection `xml:"ServerSection"`
	Agent   AgentSection  `xml:"AgentSection"`
}

type About struct {
	Summary string `xml:"Summary"`
}

type ServerSection struct {
	Handlers ServerHandlers `xml:"ServerHandlers"`
}

type ServerHandlers struct {
	Generator   FlatWorldGenerator `xml:"FlatWorldGenerator"`
	Decorator   DrawingDecorator   `xml:"DrawingDecorator"`
	QuitTimeUp  TimeUp             `xml:"ServerQuitFromTimeUp"`
	QuitAnyDone *struct{}          `xml:"ServerQuitWhenAnyAgentFinishes"`
}

type FlatWorldGenerator struct {
	GeneratorString string `xml:"generatorString,attr"`
}

type DrawingDecorator struct {
	Cuboids []DrawCuboid `xml:"DrawCuboid"`
	Items   []DrawItem   `xml:"DrawItem"`
}

type DrawCuboid struct {
	X1     int    `xml:"x1,attr"`
	Y1     int    `xml:"y1,attr"`
	Z1     int    `xml:"z1,attr"`
	X2     int    `xml:"x2,attr"`
	Y2     int    `xml:"y2,attr"`
	Z2     int    `xml:"z2,attr"`
	Type   string `xml:"type,attr"`
	Colour string `xml:"colour,attr,omitempty"`
	Face   string `xml:"face,attr,omitempty"`
}

type TimeUp struct {
	TimeLimitMs int `xml:"timeLimitMs,attr"`
}

type AgentSection struct {
	Mode     string        `xml:"mode,attr"`
	Name     string        `xml:"Name"`
	Start    AgentStart    `xml:"AgentStart"`
	Handlers AgentHandlers `xml:"AgentHandlers"`
}

type AgentStart struct {
	Placement Placement `xml:"Placement"`
	Inventory struct{}  `xml:"Inventory"`
}

type Placement struct {
	X float64 `xml:"x,attr"`
	Y float64 `xml:"y,attr"`
	Z float64 `xml:"z,attr"`
}

type AgentHandlers struct {
	Video      VideoProducer              `xml:"VideoProducer"`
	Rewards    RewardForCollectingItem    `xml:"RewardForCollectingItem"`
	Continuous ContinuousMovementCommands `xml:"ContinuousMovementCommands"`
}

type VideoProducer struct {
	Width  int `xml:"Width"`
	Height int `xml:"Height"`
}

type RewardForCollectingItem struct {
	Items []RewardItem `xml:"Item"`
}

type RewardItem struct {
	Reward float64 `xml:"reward,attr"`
	Type   string  `xml:"type,attr"`
}

type ContinuousMovementCommands struct {
	TurnSpeedDegs int `xml:"turnSpeedDegs,attr"`
}

// Validate checks the parameters for values the platform would reject.
func (p Params) Validate() error {
	var errs []error
	if strings.TrimSpace(p.Summary) == "" {
		errs = append(errs, errors.New("summary is empty"))
	}
	if p.Generator == "" {
		errs = append(errs, errors.New("world generator string is empty"))
	}
	if p.TimeLimitMs <= 0 {
		errs = append(errs, fmt.Errorf("time limit must be positive, got %d", p.TimeLimitMs))
	}
	if p.AgentName == "" {
		errs = append(errs, errors.New("agent name is empty"))
	}
	if p.VideoWidth <= 0 || p.VideoHeight <= 0 {
		errs = append(errs, fmt.Errorf("invalid video size %dx%d", p.VideoWidth, p.VideoHeight))
	}
	if len(p.Rewards) == 0 {
		errs = append(errs, errors.New("reward table is empty"))
	}
	for i, r := range p.Rewards {
		if len(r.Types) == 0 {
			errs = append(errs, fmt.Errorf("reward rule %d has no item types", i))
		}
	}
	return errors.Join(errs...)
}

// NewDocument assembles the mission document.
func NewDocument(p Params, items []DrawItem) *Document {
	doc := &Document{
		Xmlns: namespace,
		XSI:   xsiNamespace,
		About: About{Summary: p.Summary},
	}
	doc.Server.Handlers = ServerHandlers{
		Generator: FlatWorldGenerator{GeneratorString: p.Generator},
		Decorator: DrawingDecorator{
			Cuboids: []DrawCuboid{{
				X1: -p.ArenaHalf, Y1: p.FloorY, Z1: -p.ArenaHalf,
				X2: p.ArenaHalf, Y2: p.FloorY, Z2: p.ArenaHalf,
				Type: "carpet", Colour: p.CarpetColour, Face: "UP",
			}},
			Items: items,
		},
		QuitTimeUp:  TimeUp{TimeLimitMs: p.TimeLimitMs},
		QuitAnyDone: &struct{}{},
	}
	doc.Agent = AgentSection{
		Mode:  p.Mode,
		Name:  p.AgentName,
		Start: AgentStart{Placement: Placement{X: p.StartX, Y: p.StartY, Z: p.StartZ}},
		Handlers: AgentHandlers{
			Video:      VideoProducer{Width: p.VideoWidth, Height: p.VideoHeight},
			Continuous: ContinuousMovementCommands{TurnSpeedDegs: p.TurnSpeedDegs},
		},
	}
	for _, r := range p.Rewards {
		doc.Agent.Handlers.Rewards.Items = append(doc.Agent.Handlers.Rewards.Items, RewardItem{
			Reward: r.Reward,
			Type:   strings.Join(r.Types, " "),
		})
	}
	return doc
}

// Build renders the mission XML. When validate is set the parameters are checked first.
func Build(p Params, items []DrawItem, validate bool) ([]byte, error) {
	if validate {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("invalid mission: %w", err)
		}
	}
	body, err := xml.MarshalIndent(NewDocument(p, items), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode mission: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}

// Parse decodes a mission document.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode mission: %w", err)
	}
	return &doc, nil
}

// RewardTable reconstructs the reward table declared in the document.
func (d *Document) RewardTable() RewardTable {
	var t RewardTable
	for _, it := range d.Agent.Handlers.Rewards.Items {
		t = append(t, RewardRule{Reward: it.Reward, Types: strings.Fields(it.Type)})
	}
	return t
}
