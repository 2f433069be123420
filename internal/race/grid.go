package race

// Grid places slots along the X axis from a fixed base point.
type Grid struct {
	Base    Vector3 `yaml:"base" json:"base"`
	Spacing float64 `yaml:"spacing" json:"spacing"`
}

// Slot positions spread joiners out in the lobby
func DefaultLobbyGrid() Grid {
	return Grid{Spacing: 3}
}

// Starting grid used when the race is started
func DefaultStartGrid() Grid {
	return Grid{Base: Vector3{X: 0, Y: 0.5, Z: -10}, Spacing: 4}
}

func (g Grid) Slot(i int) Vector3 {
	return Vector3{
		X: g.Base.X + float64(i)*g.Spacing,
		Y: g.Base.Y,
		Z: g.Base.Z,
	}
}
