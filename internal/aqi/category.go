package aqi

import (
	"fmt"
	"math"
)

// Category is the EPA severity band of an AQI value.
type Category int

const (
	Good Category = iota
	Moderate
	UnhealthyForSensitiveGroups
	Unhealthy
	VeryUnhealthy
	Hazardous
)

// Color is the display color assigned to a category.
type Color struct {
	Name string `json:"name"`
	Hex  string `json:"hex"`
}

type categoryInfo struct {
	label       string
	upper       int // inclusive upper index bound
	color       Color
	description string
}

var categoryTable = [...]categoryInfo{
	Good: {
		label:       "Good",
		upper:       50,
		color:       Color{Name: "green", Hex: "#00e400"},
		description: "Air quality is satisfactory, and air pollution poses little or no risk.",
	},
	Moderate: {
		label:       "Moderate",
		upper:       100,
		color:       Color{Name: "yellow", Hex: "#ffff00"},
		description: "Air quality is acceptable. However, there may be a risk for some people, particularly those who are unusually sensitive to air pollution.",
	},
	UnhealthyForSensitiveGroups: {
		label:       "Unhealthy for Sensitive Groups",
		upper:       150,
		color:       Color{Name: "orange", Hex: "#ff7e00"},
		description: "Members of sensitive groups may experience health effects. The general public is less likely to be affected.",
	},
	Unhealthy: {
		label:       "Unhealthy",
		upper:       200,
		color:       Color{Name: "red", Hex: "#ff0000"},
		description: "Some members of the general public may experience health effects; members of sensitive groups may experience more serious health effects.",
	},
	VeryUnhealthy: {
		label:       "Very Unhealthy",
		upper:       300,
		color:       Color{Name: "purple", Hex: "#99004c"},
		description: "Health alert: The risk of health effects is increased for everyone.",
	},
	Hazardous: {
		label:       "Hazardous",
		upper:       math.MaxInt,
		color:       Color{Name: "maroon", Hex: "#7e0023"},
		description: "Health warning of emergency conditions: everyone is more likely to be affected.",
	},
}

// Categorize maps a rounded AQI index onto its category.
func Categorize(index int) Category {
	for c := Good; c < Hazardous; c++ {
		if index <= categoryTable[c].upper {
			return c
		}
	}
	return Hazardous
}

// Categories returns every category in ascending severity.
func Categories() []Category {
	out := make([]Category, 0, len(categoryTable))
	for c := Good; c <= Hazardous; c++ {
		out = append(out, c)
	}
	return out
}

func (c Category) valid() bool {
	return c >= Good && c <= Hazardous
}

func (c Category) String() string {
	if !c.valid() {
		return fmt.Sprintf("Category(%d)", int(c))
	}
	return categoryTable[c].label
}

// Color returns the display color for the category.
func (c Category) Color() Color {
	if !c.valid() {
		return Color{}
	}
	return categoryTable[c].color
}

// Description returns the health guidance shown alongside the category.
func (c Category) Description() string {
	if !c.valid() {
		return ""
	}
	return categoryTable[c].description
}

// Range returns the inclusive index bounds of the category. The upper bound
// of Hazardous is math.MaxInt.
func (c Category) Range() (lo, hi int) {
	if !c.valid() {
		return 0, 0
	}
	if c > Good {
		lo = categoryTable[c-1].upper + 1
	}
	return lo, categoryTable[c].upper
}

func (c Category) MarshalText() ([]byte, error) {
	if !c.valid() {
		return nil, fmt.Errorf("marshal category: unknown value %d", int(c))
	}
	return []byte(categoryTable[c].label), nil
}

func (c *Category) UnmarshalText(text []byte) error {
	parsed, err := ParseCategory(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseCategory returns the category with the given label.
func ParseCategory(label string) (Category, error) {
	for c := Good; c <= Hazardous; c++ {
		if categoryTable[c].label == label {
			return c, nil
		}
	}
	return Good, fmt.Errorf("unknown AQI category %q", label)
}
