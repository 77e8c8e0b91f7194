// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package hal

import (
	"encoding/binary"
	"fmt"

	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/rhi/driver"
)

// CompileWGSL compiles WGSL source to SPIR-V words.
func CompileWGSL(source string) ([]uint32, error) {
	spirv, err := naga.Compile(source)
	if err != nil {
		return nil, fmt.Errorf("hal: compile shader: %w", err)
	}
	if len(spirv)%4 != 0 {
		return nil, fmt.Errorf("hal: compiled shader is %d bytes, not a multiple of 4", len(spirv))
	}
	words := make([]uint32, len(spirv)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(spirv[i*4:])
	}
	return words, nil
}

// Option configures a Device.
type Option func(*Device)

// WithSPIRV makes the device compile WGSL to SPIR-V with naga before
// handing shaders to the HAL. By default WGSL is passed through.
func WithSPIRV() Option {
	return func(d *Device) { d.spirv = true }
}

// shaderModule creates a module from SPIR-V when given. WGSL is passed to
// the HAL as is, or compiled with naga when the device feeds SPIR-V.
func (d *Device) shaderModule(label string, src driver.ShaderSource) (hal.ShaderModule, error) {
	var source hal.ShaderSource
	switch {
	case len(src.SPIRV) > 0:
		source.SPIRV = src.SPIRV
	case src.WGSL == "":
		return nil, fmt.Errorf("hal: pipeline %q has no shader source", label)
	case d.spirv:
		words, err := CompileWGSL(src.WGSL)
		if err != nil {
			return nil, fmt.Errorf("hal: pipeline %q: %w", label, err)
		}
		source.SPIRV = words
	default:
		source.WGSL = src.WGSL
	}
	module, err := d.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label + "_shader",
		Source: source,
	})
	if err != nil {
		return nil, fmt.Errorf("hal: create shader module %q: %w", label, err)
	}
	return module, nil
}
