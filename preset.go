package volren

// Preset is a named, ready-to-apply transfer function. The built-in
// library covers common CT reconstructions plus a generic MRI ramp;
// domains are adapted to the active dataset's intensity range so a
// preset never references intensities the dataset cannot produce.
type Preset struct {
	ID   string
	Name string
	TF   *TransferFunction
}

// preset control points are authored in HU for CT presets; the MRI
// default is authored over the dataset range directly.

func ctPreset(id, name string, minHU, maxHU float32, colors []ColorPoint, opacities []OpacityPoint) Preset {
	tf := &TransferFunction{
		ID:        id,
		DomainMin: minHU,
		DomainMax: maxHU,
		Colors:    colors,
		Opacities: opacities,
	}
	tf.sortPoints()
	return Preset{ID: id, Name: name, TF: tf}
}

// Presets returns the built-in preset library with domains clamped to
// the dataset's intensity range. A nil dataset returns the presets with
// their authored domains.
func Presets(d *VolumeDataset) []Preset {
	lo, hi := float32(-1024), float32(3071)
	if d != nil {
		lo, hi = d.IntensityRange()
	}
	ps := []Preset{
		ctPreset("ct-bone", "CT Bone", lo, hi,
			[]ColorPoint{
				{Pos: 150, R: 0.4, G: 0.2, B: 0.1},
				{Pos: 400, R: 0.9, G: 0.8, B: 0.6},
				{Pos: 1500, R: 1, G: 1, B: 1},
			},
			[]OpacityPoint{
				{Pos: 100, Alpha: 0},
				{Pos: 300, Alpha: 0.4},
				{Pos: 1500, Alpha: 0.95},
			}),
		ctPreset("ct-soft-tissue", "CT Soft Tissue", lo, hi,
			[]ColorPoint{
				{Pos: -200, R: 0.3, G: 0.1, B: 0.05},
				{Pos: 40, R: 0.9, G: 0.6, B: 0.5},
				{Pos: 300, R: 1, G: 0.95, B: 0.9},
			},
			[]OpacityPoint{
				{Pos: -300, Alpha: 0},
				{Pos: 0, Alpha: 0.2},
				{Pos: 300, Alpha: 0.8},
			}),
		ctPreset("ct-lung", "CT Lung", lo, hi,
			[]ColorPoint{
				{Pos: -1000, R: 0.1, G: 0.1, B: 0.3},
				{Pos: -600, R: 0.6, G: 0.7, B: 0.9},
				{Pos: -300, R: 1, G: 1, B: 1},
			},
			[]OpacityPoint{
				{Pos: -1000, Alpha: 0.05},
				{Pos: -600, Alpha: 0.3},
				{Pos: -200, Alpha: 0},
			}),
		ctPreset("ct-angio", "CT Angiography", lo, hi,
			[]ColorPoint{
				{Pos: 100, R: 0.6, G: 0.05, B: 0.05},
				{Pos: 300, R: 0.95, G: 0.3, B: 0.2},
				{Pos: 600, R: 1, G: 0.9, B: 0.8},
			},
			[]OpacityPoint{
				{Pos: 80, Alpha: 0},
				{Pos: 250, Alpha: 0.6},
				{Pos: 600, Alpha: 0.95},
			}),
		ctPreset("mri-default", "MRI Default", lo, hi,
			[]ColorPoint{
				{Pos: lo, R: 0, G: 0, B: 0},
				{Pos: hi, R: 1, G: 1, B: 1},
			},
			[]OpacityPoint{
				{Pos: lo, Alpha: 0},
				{Pos: hi, Alpha: 0.9},
			}),
	}
	// Clamp authored CT points into the dataset domain so the curve's
	// outermost points stay inside [lo, hi].
	for i := range ps {
		tf := ps[i].TF
		for j := range tf.Colors {
			tf.Colors[j].Pos = clamp32(tf.Colors[j].Pos, lo, hi)
		}
		for j := range tf.Opacities {
			tf.Opacities[j].Pos = clamp32(tf.Opacities[j].Pos, lo, hi)
		}
	}
	return ps
}

// PresetByID looks up one preset adapted to the dataset.
func PresetByID(id string, d *VolumeDataset) (Preset, bool) {
	for _, p := range Presets(d) {
		if p.ID == id {
			return p, true
		}
	}
	return Preset{}, false
}

func clamp32(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
