package volren

// HuWindowMapping resolves an HU display window against the active
// dataset and transfer function: the requested bounds are clamped to the
// dataset's intensity range (keeping min ≤ max), and their normalized
// positions within the transfer-function domain are precomputed for the
// shader's lookup-texture addressing.
//
// Recomputed whenever the window, the dataset, or the transfer-function
// domain changes.
type HuWindowMapping struct {
	MinHU float32
	MaxHU float32
	TfMin float32 // normalized position of MinHU in the tf domain, [0,1]
	TfMax float32 // normalized position of MaxHU in the tf domain, [0,1]
}

// ResolveWindow clamps the requested window [minHU, maxHU] into the
// dataset's intensity range and computes the normalized transfer-domain
// positions. Inverted input bounds are swapped first. The result always
// satisfies MinHU ≤ MaxHU and TfMin ≤ TfMax.
func ResolveWindow(minHU, maxHU float32, d *VolumeDataset, tf *TransferFunction) HuWindowMapping {
	if minHU > maxHU {
		minHU, maxHU = maxHU, minHU
	}
	if d != nil {
		lo, hi := d.IntensityRange()
		minHU = clamp32(minHU, lo, hi)
		maxHU = clamp32(maxHU, lo, hi)
	}
	m := HuWindowMapping{MinHU: minHU, MaxHU: maxHU}
	if tf != nil && tf.DomainMax > tf.DomainMin {
		span := tf.DomainMax - tf.DomainMin
		m.TfMin = clamp32((minHU-tf.DomainMin)/span, 0, 1)
		m.TfMax = clamp32((maxHU-tf.DomainMin)/span, 0, 1)
	} else {
		m.TfMin, m.TfMax = 0, 1
	}
	if m.TfMin > m.TfMax {
		m.TfMin, m.TfMax = m.TfMax, m.TfMin
	}
	return m
}

// Normalize maps an intensity value into [0,1] through this window:
// (v - MinHU) / (MaxHU - MinHU), clamped. A degenerate window (zero
// width) maps everything at or above the bound to 1.
func (m HuWindowMapping) Normalize(v float32) float32 {
	span := m.MaxHU - m.MinHU
	if span <= 0 {
		if v >= m.MinHU {
			return 1
		}
		return 0
	}
	return clamp32((v-m.MinHU)/span, 0, 1)
}

// LUTCoord maps a window-normalized value into the transfer-domain
// coordinate used to address the lookup texture.
func (m HuWindowMapping) LUTCoord(normalized float32) float32 {
	return m.TfMin + (m.TfMax-m.TfMin)*clamp32(normalized, 0, 1)
}
