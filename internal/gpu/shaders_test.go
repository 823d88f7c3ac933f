// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	"encoding/binary"
	"errors"
	"strings"
	"testing"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"
)

// TestShadersCompile checks that every embedded shader compiles to SPIR-V.
func TestShadersCompile(t *testing.T) {
	for _, name := range ShaderNames {
		t.Run(string(name), func(t *testing.T) {
			src, err := EmbeddedShader(name)
			if err != nil {
				t.Fatalf("EmbeddedShader: %v", err)
			}
			spirv, err := naga.Compile(src)
			if err != nil {
				t.Fatalf("naga.Compile: %v", err)
			}
			if len(spirv) < 4 {
				t.Fatal("SPIR-V too short")
			}
			if magic := binary.LittleEndian.Uint32(spirv); magic != 0x07230203 {
				t.Errorf("SPIR-V magic = %#x, want 0x07230203", magic)
			}
		})
	}
}

// TestShaderBindingLayouts pins the binding order of every flock shader.
func TestShaderBindingLayouts(t *testing.T) {
	tests := []struct {
		name     ShaderName
		bindings []Binding
	}{
		{ShaderClearHash, []Binding{{Name: "spatial_hash", Access: ReadWrite}}},
		{ShaderBuildHash, []Binding{
			{Name: "particles", Access: ReadOnly},
			{Name: "particle_count", Access: ReadOnly},
			{Name: "spatial_hash", Access: ReadWrite},
		}},
		{ShaderBehavior, []Binding{
			{Name: "triangle_size", Access: ReadOnly},
			{Name: "aspect_ratio", Access: ReadOnly},
			{Name: "particle_count", Access: ReadOnly},
			{Name: "particles", Access: ReadOnly},
			{Name: "particles_next", Access: ReadWrite},
			{Name: "render_vertices", Access: ReadWrite},
			{Name: "spatial_hash", Access: ReadOnly},
			{Name: "behavior", Access: ReadOnly},
		}},
		{ShaderDraw, []Binding{{Name: "render_vertices", Access: ReadOnly}}},
	}
	for _, tt := range tests {
		t.Run(string(tt.name), func(t *testing.T) {
			src, _ := EmbeddedShader(tt.name)
			refl, err := reflectShader(string(tt.name), src)
			if err != nil {
				t.Fatalf("reflectShader: %v", err)
			}
			if err := refl.checkBindings(string(tt.name), tt.bindings); err != nil {
				t.Error(err)
			}
		})
	}
}

func TestComputeShadersUse16x16Workgroups(t *testing.T) {
	for _, name := range []ShaderName{ShaderClearHash, ShaderBuildHash, ShaderBehavior} {
		src, _ := EmbeddedShader(name)
		refl, err := reflectShader(string(name), src)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if err := refl.checkEntryPoint(string(name), "main", ir.StageCompute); err != nil {
			t.Errorf("%s: %v", name, err)
		}
		if got := refl.workgroups["main"]; got != [3]uint32{16, 16, 1} {
			t.Errorf("%s workgroup = %v, want [16 16 1]", name, got)
		}
	}
}

func TestLoadShaders(t *testing.T) {
	if _, err := EmbeddedShader("nope"); !errors.Is(err, ErrShaderMissing) {
		t.Errorf("EmbeddedShader(nope) error = %v, want ErrShaderMissing", err)
	}

	all, err := loadShaders(nil)
	if err != nil {
		t.Fatalf("loadShaders(nil): %v", err)
	}
	if len(all) != len(ShaderNames) {
		t.Errorf("loaded %d shaders, want %d", len(all), len(ShaderNames))
	}

	tests := []struct {
		name   string
		loader ShaderLoader
	}{
		{"empty source", func(n ShaderName) (string, error) {
			if n == ShaderDraw {
				return "", nil
			}
			return EmbeddedShader(n)
		}},
		{"loader error", func(ShaderName) (string, error) {
			return "", errors.New("disk on fire")
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadShaders(tt.loader)
			if !errors.Is(err, ErrShaderMissing) {
				t.Errorf("error = %v, want ErrShaderMissing", err)
			}
		})
	}
}

func TestShaderConstantsMatchLayout(t *testing.T) {
	for _, name := range []ShaderName{ShaderClearHash, ShaderBuildHash, ShaderBehavior} {
		src, _ := EmbeddedShader(name)
		if !strings.Contains(src, "CELL_STRIDE: u32 = 33u") {
			t.Errorf("%s does not declare a 33-word cell stride", name)
		}
	}
}
