// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slrand

import (
	"fmt"
	"strings"

	"goki.dev/synsl/slsubst"
)

// Dialect is the kernel language the device source is written for
type Dialect int32

const (
	CUDA Dialect = iota
	OpenCL
)

const (
	// DeviceType is the type of the device generator state
	DeviceType = "synslRNG"

	// DeviceInit initializes a generator: DeviceInit(&rng, seed, sequence)
	DeviceInit = "synslRNGInit"
)

// FunctionTemplates are the random number functions of model code,
// drawing from the generator bound to $(rng).
func FunctionTemplates() []slsubst.FunctionTemplate {
	return []slsubst.FunctionTemplate{
		{Name: "gennrand_uniform", Single: "synslUniformf($(rng))", Double: "synslUniform($(rng))"},
		{Name: "gennrand_normal", Single: "synslNormalf($(rng))", Double: "synslNormal($(rng))"},
		{Name: "gennrand_exponential", Single: "synslExponentialf($(rng))", Double: "synslExponential($(rng))"},
		{Name: "gennrand_log_normal", NumArgs: 2, Single: "synslLogNormalf($(rng), $(0), $(1))", Double: "synslLogNormal($(rng), $(0), $(1))"},
	}
}

const deviceTemplate = `// Philox2x32-10 counter based random numbers
typedef struct {
    unsigned int x;
    unsigned int y;
    unsigned int key;
} synslRNG;

FN void synslRNGInit(synslRNG *rng, unsigned int seed, unsigned int sequence) {
    rng->x = 0;
    rng->y = sequence;
    rng->key = seed;
}

FN uint2 synslPhilox(synslRNG *rng) {
    unsigned int x = rng->x;
    unsigned int y = rng->y;
    unsigned int key = rng->key;
    for (int i = 0; i < 10; i++) {
        const unsigned int hi = MULHI(0x%XU, x);
        const unsigned int lo = 0x%XU * x;
        x = hi ^ key ^ y;
        y = lo;
        key += 0x%XU;
    }
    if (rng->x == 0xFFFFFFFFU) {
        rng->y++;
    }
    rng->x++;
    return make_uint2(x, y);
}

FN float synslUniformf(synslRNG *rng) {
    return ((float)synslPhilox(rng).x * 2.3283064365386963e-10f) + 1.1641532182693481e-10f;
}

FN float synslNormalf(synslRNG *rng) {
    const uint2 u = synslPhilox(rng);
    const float u11 = 2.0f * (((float)(int)u.x * 2.3283064365386963e-10f) + 1.1641532182693481e-10f);
    const float u01 = ((float)u.y * 2.3283064365386963e-10f) + 1.1641532182693481e-10f;
    return sinf(3.14159265358979f * u11) * sqrtf(-2.0f * logf(u01));
}

FN float synslExponentialf(synslRNG *rng) {
    return -logf(synslUniformf(rng));
}

FN float synslLogNormalf(synslRNG *rng, float mean, float sd) {
    return expf(mean + (sd * synslNormalf(rng)));
}
`

const deviceDouble = `
FN double synslUniform(synslRNG *rng) {
    return ((double)synslPhilox(rng).x * 2.3283064365386963e-10) + 1.1641532182693481e-10;
}

FN double synslNormal(synslRNG *rng) {
    const uint2 u = synslPhilox(rng);
    const double u11 = 2.0 * (((double)(int)u.x * 2.3283064365386963e-10) + 1.1641532182693481e-10);
    const double u01 = ((double)u.y * 2.3283064365386963e-10) + 1.1641532182693481e-10;
    return sin(3.141592653589793 * u11) * sqrt(-2.0 * log(u01));
}

FN double synslExponential(synslRNG *rng) {
    return -log(synslUniform(rng));
}

FN double synslLogNormal(synslRNG *rng, double mean, double sd) {
    return exp(mean + (sd * synslNormal(rng)));
}
`

// DeviceSource returns the device generator for dialect d, with the
// double precision functions if double is set. The Philox constants
// are those of Philox2x32.
func DeviceSource(d Dialect, double bool) string {
	src := fmt.Sprintf(deviceTemplate, philoxM, philoxM, philoxW)
	if double {
		src += deviceDouble
	}
	switch d {
	case OpenCL:
		src = strings.NewReplacer("FN ", "", "MULHI(", "mul_hi(", "make_uint2(x, y)", "(uint2)(x, y)").Replace(src)
	default:
		src = strings.NewReplacer("FN ", "__device__ ", "MULHI(", "__umulhi(").Replace(src)
	}
	return src
}
