package types

// Color is the ambient indicator colour for a health score.
type Color string

const (
	ColorGreen  Color = "green"
	ColorYellow Color = "yellow"
	ColorOrange Color = "orange"
	ColorRed    Color = "red"
)

// Score bands shared by the indicator and the summary view.
const (
	BandGreen  = 80
	BandYellow = 60
	BandOrange = 40
)

// ColorFor maps a 0–100 health score to its indicator colour.
func ColorFor(score int) Color {
	switch {
	case score >= BandGreen:
		return ColorGreen
	case score >= BandYellow:
		return ColorYellow
	case score >= BandOrange:
		return ColorOrange
	default:
		return ColorRed
	}
}
