package volren

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// HistogramBins is the default intensity histogram resolution.
const HistogramBins = 256

// Histogram is the intensity distribution of a dataset (or of one MPR
// slab within it), binned over [Min, Max]. Mean and StdDev summarize the
// sampled intensities for window suggestions in the UI layer.
type Histogram struct {
	Min    float32
	Max    float32
	Counts []float64 // length HistogramBins unless constructed otherwise
	Mean   float32
	StdDev float32
}

// BinWidth returns the intensity span of one bin.
func (h Histogram) BinWidth() float32 {
	if len(h.Counts) == 0 {
		return 0
	}
	return (h.Max - h.Min) / float32(len(h.Counts))
}

// maxHistogramSamples caps the number of voxels visited for a full-volume
// histogram; larger volumes are strided.
const maxHistogramSamples = 1 << 21

// ComputeHistogram bins the dataset's intensities. When plane is
// non-nil, sampling is restricted to the descriptor's slab: a grid
// across the plane basis, marched through the slab offsets, so the
// histogram reflects what the slice view actually shows. The transfer
// function's domain takes no part here; binning always covers the
// dataset's intensity range.
func ComputeHistogram(d *VolumeDataset, plane *PlaneDescriptor, bins int) Histogram {
	if bins < 1 {
		bins = HistogramBins
	}
	lo, hi := d.IntensityRange()
	h := Histogram{Min: lo, Max: hi}
	if hi <= lo {
		h.Counts = make([]float64, bins)
		return h
	}

	var samples []float64
	if plane != nil {
		samples = slabSamples(d, *plane)
	} else {
		samples = volumeSamples(d)
	}
	sort.Float64s(samples)

	dividers := make([]float64, bins+1)
	span := float64(hi - lo)
	for i := range dividers {
		dividers[i] = float64(lo) + span*float64(i)/float64(bins)
	}
	// stat.Histogram requires samples strictly below the highest
	// divider, but the dataset range is closed: pin max-intensity
	// samples just under the top divider so they count in the last bin.
	top := math.Nextafter(dividers[bins], dividers[0])
	for i, s := range samples {
		if s < dividers[0] {
			samples[i] = dividers[0]
		} else if s > top {
			samples[i] = top
		}
	}
	h.Counts = stat.Histogram(nil, dividers, samples, nil)
	if len(samples) > 0 {
		mean, std := stat.MeanStdDev(samples, nil)
		h.Mean = float32(mean)
		h.StdDev = float32(std)
	}
	return h
}

func volumeSamples(d *VolumeDataset) []float64 {
	w, hgt, dp := d.Dims()
	total := w * hgt * dp
	stride := 1
	for total/stride > maxHistogramSamples {
		stride *= 2
	}
	out := make([]float64, 0, total/stride+1)
	i := 0
	for z := 0; z < dp; z++ {
		for y := 0; y < hgt; y++ {
			for x := 0; x < w; x++ {
				if i%stride == 0 {
					out = append(out, float64(d.VoxelAt(x, y, z)))
				}
				i++
			}
		}
	}
	return out
}

// slabSampleGrid is the in-plane resolution of slab-restricted sampling.
const slabSampleGrid = 128

func slabSamples(d *VolumeDataset, p PlaneDescriptor) []float64 {
	basis := ComputePlane(p, d)
	n := basis.Normal()
	offs := p.SlabOffsets(d)
	out := make([]float64, 0, slabSampleGrid*slabSampleGrid*len(offs))
	for _, off := range offs {
		for j := 0; j < slabSampleGrid; j++ {
			v := (float32(j) + 0.5) / slabSampleGrid
			for i := 0; i < slabSampleGrid; i++ {
				u := (float32(i) + 0.5) / slabSampleGrid
				pt := basis.Origin.
					Add(basis.U.MulScalar(u)).
					Add(basis.V.MulScalar(v)).
					Add(n.MulScalar(off))
				if pt.X < 0 || pt.X > 1 || pt.Y < 0 || pt.Y > 1 || pt.Z < 0 || pt.Z > 1 {
					continue
				}
				out = append(out, float64(d.SampleNormalized(pt.X, pt.Y, pt.Z)))
			}
		}
	}
	return out
}
