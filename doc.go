// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
synsl generates GPU kernel source for spiking network models.

A model is described by a txtar bundle holding model.toml, which declares
the neuron, weight update, postsynaptic, current source, connectivity and
variable initialization models and the groups that use them, an optional
profile.toml describing the target device, and any number of code files
whose tagged regions give the code fragments of the models:

	//synsl: start LIF.sim
	$(V) += ($(Isyn) - $(V)) * $(ExpTC);
	//synsl: end

Code regions may also be commented out, so they can live in host source:

	//synsl: code LIF.threshold
	// $(V) >= $(Vthresh)
	//synsl: end

Given a file, synsl processes that bundle; given a directory, it
processes all .txtar files in that directory, recursively. Files starting
with a period are ignored.

For each model synsl writes <model>.cu (CUDA) or <model>.cl (OpenCL) and
<model>_kernels.toml, which lists, per kernel in launch order, the block
size, the number of global threads, the thread range of each group and
the ordered kernel parameters the host must bind.

Usage:

	synsl [flags] [path ...]

The flags are:

	-out dir
		Output directory, default generated.
	-backend cuda|opencl
		Backend used when no device profile is given.
	-profile file
		Toml device profile, used instead of any profile.toml in the
		bundles. A leading ~ is expanded to the home directory.
	-precision float|double
		Scalar precision, overriding the model and the profile.
	-show
		Print the highlighted kernel source to stdout.
	-watch
		Regenerate bundles when they change, until interrupted.
	-v
		Debug logging, including the strategy chosen for each synapse
		group.
*/
package main
