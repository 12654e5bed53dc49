package typesystem

// TypePosition tells where a node sits relative to a flexible range. Only
// position-indexed consumers care; substitution itself treats all positions
// alike.
type TypePosition int

const (
	Inflexible    TypePosition = 0 // Outside any flexible range, or an argument
	FlexibleLower TypePosition = 1 // Lower bound of a flexible range
	FlexibleUpper TypePosition = 2 // Upper bound of a flexible range
)

func (p TypePosition) String() string {
	switch p {
	case FlexibleLower:
		return "FLEXIBLE_LOWER"
	case FlexibleUpper:
		return "FLEXIBLE_UPPER"
	default:
		return "INFLEXIBLE"
	}
}
