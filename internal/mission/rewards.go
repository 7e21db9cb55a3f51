package mission

import "strings"

// RewardRule assigns one reward value to a set of item types.
type RewardRule struct {
	Reward float64  `yaml:"reward" json:"reward"`
	Types  []string `yaml:"types" json:"types"`
}

// RewardTable maps item type names to rewards for collecting them.
type RewardTable []RewardRule

// DefaultRewardTable is the food table of the item-collection mission.
func DefaultRewardTable() RewardTable {
	return RewardTable{
		{Reward: 2, Types: []string{"fish", "porkchop", "beef", "chicken", "rabbit", "mutton"}},
		{Reward: 1, Types: []string{"potato", "egg", "carrot"}},
		{Reward: -1, Types: []string{"apple", "melon"}},
		{Reward: -2, Types: []string{"sugar", "cake", "cookie", "pumpkin_pie"}},
	}
}

// Lookup returns the reward of an item type. Unknown types yield (0, false).
func (t RewardTable) Lookup(itemType string) (float64, bool) {
	for _, r := range t {
		for _, typ := range r.Types {
			if strings.EqualFold(typ, itemType) {
				return r.Reward, true
			}
		}
	}
	return 0, false
}

// ItemTypes returns every item type in table order.
func (t RewardTable) ItemTypes() []string {
	var out []string
	for _, r := range t {
		out = append(out, r.Types...)
	}
	return out
}
