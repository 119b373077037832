package gpucompute

import (
	_ "embed"
	"fmt"

	"github.com/gogpu/naga"
)

//go:embed shaders/raymarch.wgsl
var raymarchShaderWGSL string

// raymarchBindingCount is the number of bind group entries declared in
// raymarch.wgsl. bindings.go asserts the Go-side slot table against it
// at compile time.
const raymarchBindingCount = 5

// validateShader runs the embedded WGSL through naga so a malformed
// shader surfaces as ErrShader at pipeline build time, with a real
// compiler message, instead of an opaque driver failure at dispatch.
func validateShader() error {
	if _, err := naga.Compile(raymarchShaderWGSL); err != nil {
		return fmt.Errorf("%w: %v", ErrShader, err)
	}
	return nil
}
