package volren

import "testing"

func TestPresetsClampToDatasetRange(t *testing.T) {
	d, _ := NewVolumeDataset(int16Volume(make([]int16, 8)), 2, 2, 2, unitSpacing(), PixelInt16, -500, 500)
	for _, p := range Presets(d) {
		if p.TF == nil {
			t.Fatalf("preset %q has no transfer function", p.ID)
		}
		if p.TF.DomainMin < -500 || p.TF.DomainMax > 500 {
			t.Errorf("preset %q domain [%v, %v] exceeds dataset range", p.ID, p.TF.DomainMin, p.TF.DomainMax)
		}
		if p.TF.DomainMin >= p.TF.DomainMax {
			t.Errorf("preset %q has a degenerate domain [%v, %v]", p.ID, p.TF.DomainMin, p.TF.DomainMax)
		}
	}
}

func TestPresetsIndependentCopies(t *testing.T) {
	a := Presets(nil)
	b := Presets(nil)
	a[0].TF.Shift = 99
	if b[0].TF.Shift == 99 {
		t.Errorf("preset libraries must not share transfer functions")
	}
}

func TestPresetByID(t *testing.T) {
	p, ok := PresetByID("ct-bone", nil)
	if !ok || p.ID != "ct-bone" {
		t.Fatalf("PresetByID(ct-bone) = (%+v, %v)", p, ok)
	}
	if _, ok := PresetByID("no-such-preset", nil); ok {
		t.Errorf("unknown preset id must report ok=false")
	}
}
