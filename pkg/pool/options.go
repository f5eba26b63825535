package pool

import "github.com/chazu/lagoon/pkg/uv"

// Options holds the fixed construction constants of the builder.
type Options struct {
	// StepLength is the run of one step along X.
	StepLength float64 `toml:"step_length"`
	// MinFinalStep is the smallest height the last step may take when it
	// fills down to the shallow floor.
	MinFinalStep float64 `toml:"min_final_step"`
	// MinStepLength bounds interactive step resizing.
	MinStepLength float64 `toml:"min_step_length"`

	WallThickness   float64 `toml:"wall_thickness"`
	CopingOverhang  float64 `toml:"coping_overhang"`
	CopingThickness float64 `toml:"coping_thickness"`

	// WaterLevel is the Z of the water surface.
	WaterLevel float64 `toml:"water_level"`

	// CurveResolution is the sample count per curved freeform edge.
	CurveResolution int `toml:"curve_resolution"`
	// OvalSegments is the vertex count of the oval perimeter.
	OvalSegments int `toml:"oval_segments"`
	// KidneySmoothing is the number of Chaikin passes over the kidney
	// control outline.
	KidneySmoothing int `toml:"kidney_smoothing"`
	// FloorSegmentsPerMeter sets floor grid density.
	FloorSegmentsPerMeter float64 `toml:"floor_segments_per_meter"`

	// TileSize is the real-world tile repeat used by the UV pass. It is
	// configured under [tiling], not [build].
	TileSize float64 `toml:"-"`
}

// DefaultOptions returns the stock construction constants.
func DefaultOptions() Options {
	return Options{
		StepLength:            0.3,
		MinFinalStep:          0.05,
		MinStepLength:         0.15,
		WallThickness:         0.2,
		CopingOverhang:        0.05,
		CopingThickness:       0.05,
		WaterLevel:            -0.08,
		CurveResolution:       24,
		OvalSegments:          64,
		KidneySmoothing:       3,
		FloorSegmentsPerMeter: 4,
		TileSize:              uv.DefaultTileSize,
	}
}

// withDefaults fills zero or negative fields from DefaultOptions.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	pos := func(v *float64, def float64) {
		if !(*v > 0) {
			*v = def
		}
	}
	posInt := func(v *int, def int) {
		if *v <= 0 {
			*v = def
		}
	}
	pos(&o.StepLength, d.StepLength)
	pos(&o.MinFinalStep, d.MinFinalStep)
	pos(&o.MinStepLength, d.MinStepLength)
	pos(&o.WallThickness, d.WallThickness)
	pos(&o.CopingOverhang, d.CopingOverhang)
	pos(&o.CopingThickness, d.CopingThickness)
	pos(&o.FloorSegmentsPerMeter, d.FloorSegmentsPerMeter)
	pos(&o.TileSize, d.TileSize)
	posInt(&o.CurveResolution, d.CurveResolution)
	posInt(&o.OvalSegments, d.OvalSegments)
	posInt(&o.KidneySmoothing, d.KidneySmoothing)
	if o.WaterLevel >= 0 {
		o.WaterLevel = d.WaterLevel
	}
	return o
}
