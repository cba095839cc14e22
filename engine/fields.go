package engine

import (
	"fmt"

	"github.com/pthm-cable/physarum/config"
	"github.com/pthm-cable/physarum/systems"
)

// LoadField builds an auxiliary field from its configuration. A "none"
// source yields nil, which the engine treats as the neutral field.
func LoadField(fc config.FieldConfig, kind systems.FieldKind) (*systems.Grid, error) {
	switch fc.Source {
	case "", "none":
		return nil, nil
	case "image":
		return systems.LoadImageGrid(fc.Path, kind, fc.MaxSize)
	case "procedural":
		p := fc.NoiseParams()
		switch kind {
		case systems.FieldStimuli:
			return systems.ProceduralStimuli(p), nil
		case systems.FieldInfluence:
			return systems.ProceduralInfluence(p), nil
		case systems.FieldFluid:
			return systems.CurlFluid(p), nil
		}
	}
	return nil, fmt.Errorf("%w: %s source %q", ErrInvalidConfig, kind, fc.Source)
}

// loadAux loads all three configured fields.
func loadAux(cfg *config.Config) (systems.AuxFields, error) {
	var aux systems.AuxFields
	var err error
	if aux.Stimuli, err = LoadField(cfg.Stimuli, systems.FieldStimuli); err != nil {
		return aux, err
	}
	if aux.Influence, err = LoadField(cfg.Influence, systems.FieldInfluence); err != nil {
		return aux, err
	}
	if aux.Fluid, err = LoadField(cfg.Fluid, systems.FieldFluid); err != nil {
		return aux, err
	}
	return aux, nil
}
