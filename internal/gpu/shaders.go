// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	_ "embed"
	"errors"
	"fmt"
)

// =============================================================================
// Embedded WGSL Shader Sources
// =============================================================================

// Each file is one stage of the flock frame. The CPU reference of every
// compute shader lives in the flockcompute package.

//go:embed shaders/clear_hash.wgsl
var shaderClearHash string

//go:embed shaders/build_hash.wgsl
var shaderBuildHash string

//go:embed shaders/behavior.wgsl
var shaderBehavior string

//go:embed shaders/draw.wgsl
var shaderDraw string

// ErrShaderMissing is returned when a shader source cannot be loaded or is
// empty.
var ErrShaderMissing = errors.New("gpu: shader source missing")

// ShaderName identifies one of the flock shaders.
type ShaderName string

// Flock shader names.
const (
	ShaderClearHash ShaderName = "clear_hash"
	ShaderBuildHash ShaderName = "build_hash"
	ShaderBehavior  ShaderName = "behavior"
	ShaderDraw      ShaderName = "draw"
)

// ShaderNames lists every shader in frame order.
var ShaderNames = []ShaderName{ShaderClearHash, ShaderBuildHash, ShaderBehavior, ShaderDraw}

// ShaderLoader returns the WGSL source for a shader.
type ShaderLoader func(name ShaderName) (string, error)

// EmbeddedShader is the default ShaderLoader serving the built-in sources.
func EmbeddedShader(name ShaderName) (string, error) {
	switch name {
	case ShaderClearHash:
		return shaderClearHash, nil
	case ShaderBuildHash:
		return shaderBuildHash, nil
	case ShaderBehavior:
		return shaderBehavior, nil
	case ShaderDraw:
		return shaderDraw, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrShaderMissing, name)
	}
}

// loadShaders resolves every flock shader through load. A load error or an
// empty source is reported as ErrShaderMissing.
func loadShaders(load ShaderLoader) (map[ShaderName]string, error) {
	if load == nil {
		load = EmbeddedShader
	}
	out := make(map[ShaderName]string, len(ShaderNames))
	for _, name := range ShaderNames {
		src, err := load(name)
		if err != nil {
			if errors.Is(err, ErrShaderMissing) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %s: %w", ErrShaderMissing, name, err)
		}
		if src == "" {
			return nil, fmt.Errorf("%w: %s is empty", ErrShaderMissing, name)
		}
		out[name] = src
	}
	return out, nil
}
