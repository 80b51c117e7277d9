package vtube

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

// Range is a (low, high) pair.
type Range struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// ParameterMapping routes one tracking input onto one model output channel.
// Mappings are read-only views over their stored JSON; they are copied
// verbatim on transfer.
type ParameterMapping struct {
	Name        string
	Input       string
	Output      string
	Folder      string
	Smoothing   int
	InputRange  Range
	OutputRange Range

	raw json.RawMessage
}

func decodeParameter(raw json.RawMessage) ParameterMapping {
	r := gjson.ParseBytes(raw)
	p := ParameterMapping{
		Name:      r.Get("Name").String(),
		Input:     r.Get("Input").String(),
		Output:    r.Get("OutputLive2D").String(),
		Folder:    r.Get("Folder").String(),
		Smoothing: int(r.Get("Smoothing").Int()),
		InputRange: Range{
			Low:  floatOr(r.Get("InputRangeLower"), 0),
			High: floatOr(r.Get("InputRangeUpper"), 1),
		},
		OutputRange: Range{
			Low:  floatOr(r.Get("OutputRangeLower"), 0),
			High: floatOr(r.Get("OutputRangeUpper"), 1),
		},
	}
	p.raw = append(json.RawMessage(nil), raw...)
	return p
}

func floatOr(r gjson.Result, def float64) float64 {
	if !r.Exists() {
		return def
	}
	return r.Float()
}

// Clone returns a deep copy of the mapping.
func (p ParameterMapping) Clone() ParameterMapping {
	c := p
	c.raw = append(json.RawMessage(nil), p.raw...)
	return c
}

// MarshalJSON emits the stored entry unchanged. Mappings constructed in code
// are encoded from their modeled fields.
func (p ParameterMapping) MarshalJSON() ([]byte, error) {
	if p.raw != nil {
		return append([]byte(nil), p.raw...), nil
	}
	return json.Marshal(struct {
		Name             string
		Input            string
		OutputLive2D     string
		Folder           string
		Smoothing        int
		InputRangeLower  float64
		InputRangeUpper  float64
		OutputRangeLower float64
		OutputRangeUpper float64
	}{
		Name:             p.Name,
		Input:            p.Input,
		OutputLive2D:     p.Output,
		Folder:           p.Folder,
		Smoothing:        p.Smoothing,
		InputRangeLower:  p.InputRange.Low,
		InputRangeUpper:  p.InputRange.High,
		OutputRangeLower: p.OutputRange.Low,
		OutputRangeUpper: p.OutputRange.High,
	})
}
