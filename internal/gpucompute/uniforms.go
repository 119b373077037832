package gpucompute

import (
	"encoding/binary"
	"math"

	"cogentcore.org/core/math32"
)

// Compositing method codes, matching the switch in raymarch.wgsl.
const (
	MethodDVR uint32 = iota
	MethodMIP
	MethodMinIP
	MethodAverage
	MethodSurface
)

// RenderUniforms is the per-render uniform block. Field order and
// padding match struct RenderConfig in raymarch.wgsl exactly.
type RenderUniforms struct {
	Method uint32
	Steps  uint32
	Width  uint32
	Height uint32

	WinMin  float32
	WinMax  float32
	DataMin float32
	DataMax float32

	DimX     uint32
	DimY     uint32
	DimZ     uint32
	Lighting uint32

	GateMin     float32
	GateMax     float32
	GateEnabled uint32
	SignedData  uint32

	TfMin float32
	TfMax float32
}

func (u RenderUniforms) sizeInBytes() uint64 { return 80 }

// toBytes serializes RenderUniforms in little-endian layout, including
// the trailing pad words of the WGSL struct.
func (u RenderUniforms) toBytes() []byte {
	buf := make([]byte, u.sizeInBytes())
	le := binary.LittleEndian
	le.PutUint32(buf[0:4], u.Method)
	le.PutUint32(buf[4:8], u.Steps)
	le.PutUint32(buf[8:12], u.Width)
	le.PutUint32(buf[12:16], u.Height)
	le.PutUint32(buf[16:20], math.Float32bits(u.WinMin))
	le.PutUint32(buf[20:24], math.Float32bits(u.WinMax))
	le.PutUint32(buf[24:28], math.Float32bits(u.DataMin))
	le.PutUint32(buf[28:32], math.Float32bits(u.DataMax))
	le.PutUint32(buf[32:36], u.DimX)
	le.PutUint32(buf[36:40], u.DimY)
	le.PutUint32(buf[40:44], u.DimZ)
	le.PutUint32(buf[44:48], u.Lighting)
	le.PutUint32(buf[48:52], math.Float32bits(u.GateMin))
	le.PutUint32(buf[52:56], math.Float32bits(u.GateMax))
	le.PutUint32(buf[56:60], u.GateEnabled)
	le.PutUint32(buf[60:64], u.SignedData)
	le.PutUint32(buf[64:68], math.Float32bits(u.TfMin))
	le.PutUint32(buf[68:72], math.Float32bits(u.TfMax))
	// buf[72:80] stays zero (_pad0, _pad1)
	return buf
}

// CameraUniforms matches struct CameraConfig in raymarch.wgsl: the
// inverse view-projection for per-pixel ray reconstruction, the eye
// position, and the near/far planes.
type CameraUniforms struct {
	InvViewProj math32.Matrix4
	Eye         math32.Vector3
	Near        float32
	Far         float32
}

func (u CameraUniforms) sizeInBytes() uint64 { return 96 }

// toBytes serializes CameraUniforms: 64 bytes of column-major matrix,
// 16 bytes eye (w unused), 16 bytes near/far + padding.
func (u CameraUniforms) toBytes() []byte {
	buf := make([]byte, u.sizeInBytes())
	le := binary.LittleEndian
	for i, v := range u.InvViewProj {
		le.PutUint32(buf[i*4:i*4+4], math.Float32bits(v))
	}
	le.PutUint32(buf[64:68], math.Float32bits(u.Eye.X))
	le.PutUint32(buf[68:72], math.Float32bits(u.Eye.Y))
	le.PutUint32(buf[72:76], math.Float32bits(u.Eye.Z))
	le.PutUint32(buf[76:80], math.Float32bits(1))
	le.PutUint32(buf[80:84], math.Float32bits(u.Near))
	le.PutUint32(buf[84:88], math.Float32bits(u.Far))
	// buf[88:96] stays zero
	return buf
}
