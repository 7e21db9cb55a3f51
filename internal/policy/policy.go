// Package policy implements the reactive steering rule of the food-collecting agent.
//
// The agent runs forward continuously. Whenever a non-zero reward arrives it starts
// turning, left for a loss and right for a gain, and keeps turning for a number of
// polls proportional to the size of the reward.
package policy

import (
	"strconv"
)

// Direction of a turn.
type Direction int

const (
	Straight Direction = 0
	Left     Direction = -1
	Right    Direction = 1
)

func (d Direction) String() string {
	switch d {
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return "straight"
	}
}

// Move formats a continuous movement command.
func Move(velocity float64) string {
	return "move " + strconv.FormatFloat(velocity, 'g', -1, 64)
}

// Turn formats a continuous turn command.
func Turn(d Direction) string {
	return "turn " + strconv.Itoa(int(d))
}

// TurnController tracks how many more polls the agent keeps turning.
type TurnController struct {
	count float64
}

// Count returns the remaining turn count.
func (c *TurnController) Count() float64 { return c.count }

// React applies a reward delta. A zero delta leaves the state untouched and
// reports ok=false. Otherwise the counter is reset and the turn command to
// send is returned.
func (c *TurnController) React(delta float64) (cmd string, dir Direction, ok bool) {
	if delta == 0 {
		return "", Straight, false
	}
	if delta < 0 {
		c.count = 1 - delta
		return Turn(Left), Left, true
	}
	c.count = 1 + delta
	return Turn(Right), Right, true
}

// Tick decrements a positive counter. When it reaches zero the stop command is returned.
func (c *TurnController) Tick() (cmd string, ok bool) {
	if c.count <= 0 {
		return "", false
	}
	c.count--
	if c.count == 0 {
		return Turn(Straight), true
	}
	return "", false
}
