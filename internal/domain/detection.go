package domain

import "fmt"

// Detection method tags.
const (
	// MethodTemplate marks a match accepted on correlation score alone.
	MethodTemplate = "template"

	// MethodTemplateValidated marks a lower-band match confirmed by the colour and shape checks.
	MethodTemplateValidated = "template+colour+shape"
)

// DetectionResult describes one located UI element in screen coordinates.
// X and Y are the center of the matched region. Results are produced per call
// and never mutated afterwards.
//
// Example JSON representation:
//
//	{
//	    "name": "Windows Start button",
//	    "x": 24, "y": 1418, "width": 40, "height": 40,
//	    "confidence": 0.71,
//	    "method": "template"
//	}
type DetectionResult struct {
	Name       string  `json:"name"`
	X          int     `json:"x"`
	Y          int     `json:"y"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Confidence float64 `json:"confidence"`
	Method     string  `json:"method"`
}

// String returns a short human-readable form used in logs and step outcomes.
func (d DetectionResult) String() string {
	return fmt.Sprintf("%s at (%d, %d) conf=%.2f [%s]", d.Name, d.X, d.Y, d.Confidence, d.Method)
}
