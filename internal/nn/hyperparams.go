package nn

// HyperParams is the generic, map-based view of a layer configuration.
//
// Layers keep typed configuration structs internally; this view exists only
// at the persistence boundary, produced by Layer.HyperParams and consumed by
// New.
type HyperParams struct {
	Strings map[string]string  `json:"str_hps"`
	Floats  map[string]float32 `json:"flt_hps"`
	Ints    map[string]int     `json:"int_hps"`
}

// NewHyperParams returns an empty, writable HyperParams.
func NewHyperParams() HyperParams {
	return HyperParams{
		Strings: map[string]string{},
		Floats:  map[string]float32{},
		Ints:    map[string]int{},
	}
}

// String returns the string entry for key, or def when absent.
func (hp HyperParams) String(key, def string) string {
	if v, ok := hp.Strings[key]; ok {
		return v
	}
	return def
}

// Float returns the float entry for key, or def when absent.
func (hp HyperParams) Float(key string, def float32) float32 {
	if v, ok := hp.Floats[key]; ok {
		return v
	}
	return def
}

// Int returns the int entry for key, or def when absent.
func (hp HyperParams) Int(key string, def int) int {
	if v, ok := hp.Ints[key]; ok {
		return v
	}
	return def
}
