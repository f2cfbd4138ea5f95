package model

// FloorItem is a persistent item lying on a map. The whole tuple is its
// identity: two stacks of the same item on the same tile with different
// amounts coexist.
type FloorItem struct {
	MapID  int
	ItemID int
	Amount int
	X      int
	Y      int
}
