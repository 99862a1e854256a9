package pool

// Tier is a client reputation band. Higher tiers pay more and gate
// which offers the player can accept.
type Tier struct {
	Level            int
	Name             string
	MinReputation    int
	PayoutMultiplier float64
}

// Tiers lists the client tiers in ascending reputation order.
var Tiers = []Tier{
	{Level: 1, Name: "street", MinReputation: 0, PayoutMultiplier: 1.0},
	{Level: 2, Name: "corporate", MinReputation: 100, PayoutMultiplier: 1.5},
	{Level: 3, Name: "government", MinReputation: 300, PayoutMultiplier: 2.25},
	{Level: 4, Name: "shadow", MinReputation: 600, PayoutMultiplier: 3.5},
}

// TierFor returns the highest tier the given reputation reaches.
func TierFor(reputation int) Tier {
	t := Tiers[0]
	for _, candidate := range Tiers[1:] {
		if reputation >= candidate.MinReputation {
			t = candidate
		}
	}
	return t
}

// TierByLevel returns the tier with the given level, defaulting to the
// lowest tier for out-of-range levels.
func TierByLevel(level int) Tier {
	for _, t := range Tiers {
		if t.Level == level {
			return t
		}
	}
	return Tiers[0]
}
