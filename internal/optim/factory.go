package optim

import (
	"github.com/pkg/errors"
)

// Persisted optimizer type names.
const (
	TypeSGD     = "SGD"
	TypeAdaGrad = "AdaGrad"
	TypeRMSProp = "RMSProp"
	TypeAdam    = "Adam"
)

// ErrUnknownType is returned by New for an unknown optimizer type.
var ErrUnknownType = errors.New("unknown optimizer type")

// New rebuilds an optimizer from its persisted type name, base rate, decay
// locations and hyper-parameters. Missing hyper-parameters take their
// defaults; SGD momentum defaults to 0.9 here.
func New(typ string, base float32, decayLocs []float32, hp map[string]float32) (Optimizer, error) {
	get := func(key string, def float32) float32 {
		if v, ok := hp[key]; ok {
			return v
		}
		return def
	}
	switch typ {
	case TypeSGD:
		return NewSGD(SGDConfig{LR: base, Momentum: get("momentum", 0.9), DecayLocs: decayLocs}), nil
	case TypeAdaGrad:
		return NewAdaGrad(AdaGradConfig{LR: base, Eps: get("eps", 1e-7), DecayLocs: decayLocs}), nil
	case TypeRMSProp:
		return NewRMSProp(RMSPropConfig{
			LR:        base,
			DecayRate: get("decay_rate", 0.9),
			Eps:       get("eps", 1e-7),
			DecayLocs: decayLocs,
		}), nil
	case TypeAdam:
		return NewAdam(AdamConfig{
			LR:        base,
			Betas:     [2]float32{get("beta1", 0.9), get("beta2", 0.999)},
			Eps:       get("eps", 1e-8),
			DecayLocs: decayLocs,
		}), nil
	}
	return nil, errors.Wrapf(ErrUnknownType, "%q", typ)
}
