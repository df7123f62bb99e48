// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slbackend

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"goki.dev/synsl/sltype"
)

// Kind is the kernel language of a backend
type Kind int32

const (
	CUDA Kind = iota
	OpenCL
)

// String returns the lower case name, as used on the command line
func (k Kind) String() string {
	if k == OpenCL {
		return "opencl"
	}
	return "cuda"
}

// Ext is the file extension of generated source
func (k Kind) Ext() string {
	if k == OpenCL {
		return ".cl"
	}
	return ".cu"
}

// ParseKind parses a backend name
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cuda", "":
		return CUDA, nil
	case "opencl", "cl":
		return OpenCL, nil
	}
	return CUDA, fmt.Errorf("slbackend: unknown backend %q", s)
}

func (k *Kind) UnmarshalText(text []byte) error {
	v, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// BlockSizes are the thread block sizes of each kernel
type BlockSizes struct {
	PresynapticUpdate int `toml:"presynaptic_update"`
	NeuronUpdate      int `toml:"neuron_update"`
	PreNeuronReset    int `toml:"pre_neuron_reset"`
	Initialize        int `toml:"initialize"`
}

// Profile describes the target device. It is read once and not
// modified by generation.
type Profile struct {
	Name    string `toml:"name"`
	Backend Kind   `toml:"backend"`

	// ComputeMajor and ComputeMinor are the CUDA compute capability.
	// 0 for OpenCL devices.
	ComputeMajor int `toml:"compute_major"`
	ComputeMinor int `toml:"compute_minor"`

	// FastSharedAtomics overrides the detection of fast shared memory
	// atomics from the compute capability.
	FastSharedAtomics *bool `toml:"fast_shared_atomics"`

	BlockSize BlockSizes `toml:"block_size"`

	// Precision overrides the model precision if set
	Precision string `toml:"precision"`

	// DeviceTypes are types that only exist on the device, such as
	// random generator states: parameters of these types must be
	// pointers.
	DeviceTypes []string `toml:"device_types"`
}

// DefaultProfile is a compute 7.0 CUDA device, or a generic OpenCL one
func DefaultProfile(k Kind) *Profile {
	pr := &Profile{
		Name:        "default",
		Backend:     k,
		BlockSize:   BlockSizes{PresynapticUpdate: 32, NeuronUpdate: 32, PreNeuronReset: 32, Initialize: 32},
		DeviceTypes: []string{"synslRNG"},
	}
	if k == CUDA {
		pr.ComputeMajor = 7
	}
	return pr
}

// DecodeProfile decodes a toml profile over the defaults of its backend
func DecodeProfile(data []byte) (*Profile, error) {
	var hdr struct {
		Backend Kind `toml:"backend"`
	}
	if _, err := toml.Decode(string(data), &hdr); err != nil {
		return nil, errors.Wrap(err, "decoding profile")
	}
	pr := DefaultProfile(hdr.Backend)
	md, err := toml.Decode(string(data), pr)
	if err != nil {
		return nil, errors.Wrap(err, "decoding profile")
	}
	if und := md.Undecoded(); len(und) > 0 {
		return nil, errors.Errorf("profile %s: unknown key %s", pr.Name, und[0].String())
	}
	if err := pr.Validate(); err != nil {
		return nil, err
	}
	return pr, nil
}

// Validate checks block sizes and the precision override
func (pr *Profile) Validate() error {
	bs := pr.BlockSize
	for _, b := range []int{bs.PresynapticUpdate, bs.NeuronUpdate, bs.PreNeuronReset, bs.Initialize} {
		if b <= 0 {
			return errors.Errorf("profile %s: block sizes must be positive", pr.Name)
		}
	}
	if pr.Precision != "" {
		if _, err := sltype.ParsePrecision(pr.Precision); err != nil {
			return errors.Wrapf(err, "profile %s", pr.Name)
		}
	}
	return nil
}

// IsDeviceType reports whether the base type of typ, without pointer,
// is device only.
func (pr *Profile) IsDeviceType(typ string) bool {
	base := strings.TrimSpace(strings.TrimRight(typ, "* "))
	for _, dt := range pr.DeviceTypes {
		if dt == base {
			return true
		}
	}
	return false
}
