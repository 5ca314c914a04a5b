// GPU-accelerated broad-phase collision detection
package compute

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// NoLayer marks a proxy that pairs with nothing, such as a disabled body.
const NoLayer = ^uint32(0)

// BroadPhase finds overlapping bounding spheres on the GPU and filters the
// candidates through an object-layer collision table.
type BroadPhase struct {
	dev    *device
	kernel *kernel

	// Buffers, in shader binding order
	proxyBuffer  *buffer // Input: positions, radii and layers
	pairBuffer   *buffer // Output: candidate pairs
	countBuffer  *buffer // Output: number of pairs found
	paramsBuffer *buffer // Uniform: proxy count and layer count
	layerBuffer  *buffer // Input: layer table bitset

	maxObjects uint32
	maxPairs   uint32
	layerCount uint32
}

// Proxy is the bounding sphere of one body with its object layer.
// Packed as two vec4s: xyz = position, w = radius, then layer and padding.
type Proxy struct {
	X, Y, Z float32
	Radius  float32
	Layer   uint32
	_       [3]uint32
}

// CollisionPair holds two proxy indices, A < B.
type CollisionPair struct {
	A, B uint32
}

// params mirrors the shader's uniform block.
type params struct {
	ProxyCount uint32
	LayerCount uint32
	_          [2]uint32
}

const broadPhaseShader = `
// Each thread checks one proxy against all others with higher indices,
// giving n*(n-1)/2 checks with no duplicates.

struct Proxy {
    pos: vec3<f32>,
    radius: f32,
    layer: u32,
    pad0: u32,
    pad1: u32,
    pad2: u32,
}

struct Pair {
    a: u32,
    b: u32,
}

struct Params {
    proxyCount: u32,
    layerCount: u32,
    pad0: u32,
    pad1: u32,
}

@group(0) @binding(0) var<storage, read> proxies: array<Proxy>;
@group(0) @binding(1) var<storage, read_write> pairs: array<Pair>;
@group(0) @binding(2) var<storage, read_write> pairCount: atomic<u32>;
@group(0) @binding(3) var<uniform> params: Params;
@group(0) @binding(4) var<storage, read> layerTable: array<u32>;

fn layersCollide(a: u32, b: u32) -> bool {
    if (a >= params.layerCount || b >= params.layerCount) {
        return false;
    }
    let bit = a * params.layerCount + b;
    return (layerTable[bit / 32u] & (1u << (bit % 32u))) != 0u;
}

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let i = global_id.x;
    if (i >= params.proxyCount) {
        return;
    }

    let proxyA = proxies[i];

    for (var j = i + 1u; j < params.proxyCount; j = j + 1u) {
        let proxyB = proxies[j];
        if (!layersCollide(proxyA.layer, proxyB.layer)) {
            continue;
        }

        let diff = proxyA.pos - proxyB.pos;
        let distSq = dot(diff, diff);
        let radiusSum = proxyA.radius + proxyB.radius;

        if (distSq < radiusSum * radiusSum) {
            let idx = atomicAdd(&pairCount, 1u);

            // Bounds check (don't overflow pair buffer)
            if (idx < arrayLength(&pairs)) {
                pairs[idx] = Pair(i, j);
            }
        }
    }
}
`

// NewBroadPhase creates a GPU broad phase for up to maxObjects proxies
// reporting at most maxPairs candidate pairs. It returns nil, nil when
// Initialize has not opened a device.
func NewBroadPhase(maxObjects, maxPairs uint32) (*BroadPhase, error) {
	if shared == nil {
		return nil, nil
	}
	k, err := shared.compile("broadphase", broadPhaseShader, "main")
	if err != nil {
		return nil, err
	}

	bp := &BroadPhase{dev: shared, kernel: k, maxObjects: maxObjects, maxPairs: maxPairs}
	buffers := []struct {
		dst   **buffer
		label string
		size  uint64
		usage wgpu.BufferUsage
	}{
		{&bp.proxyBuffer, "proxies", uint64(maxObjects) * 32, wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst},
		{&bp.pairBuffer, "pairs", uint64(maxPairs) * 8, wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc},
		{&bp.countBuffer, "pairCount", 4, wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst},
		{&bp.paramsBuffer, "params", 16, wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst},
	}
	for _, b := range buffers {
		buf, err := shared.newBuffer(b.label, b.size, b.usage)
		if err != nil {
			bp.Release()
			return nil, err
		}
		*b.dst = buf
	}
	return bp, nil
}

// SetLayerFilter uploads the collision table for layers [0, count). It must
// be called before DetectPairs and again whenever the table changes.
func (bp *BroadPhase) SetLayerFilter(count uint32, shouldCollide func(a, b uint32) bool) error {
	words := make([]uint32, (count*count+31)/32)
	for a := uint32(0); a < count; a++ {
		for b := uint32(0); b < count; b++ {
			if shouldCollide(a, b) {
				bit := a*count + b
				words[bit/32] |= 1 << (bit % 32)
			}
		}
	}
	if bp.layerBuffer != nil && bp.layerBuffer.size != uint64(len(words))*4 {
		bp.layerBuffer.release()
		bp.layerBuffer = nil
	}
	if bp.layerBuffer == nil {
		buf, err := bp.dev.newBuffer("layerTable", uint64(len(words))*4,
			wgpu.BufferUsageStorage|wgpu.BufferUsageCopyDst)
		if err != nil {
			return err
		}
		bp.layerBuffer = buf
	}
	upload(bp.dev, bp.layerBuffer, words)
	upload(bp.dev, bp.paramsBuffer, []params{{LayerCount: count}})
	bp.layerCount = count
	return nil
}

// DetectPairs finds all potentially colliding pairs whose layers may collide.
// Returned indices correspond to input proxy order.
func (bp *BroadPhase) DetectPairs(proxies []Proxy) ([]CollisionPair, error) {
	if len(proxies) == 0 {
		return nil, nil
	}
	if bp.layerBuffer == nil {
		return nil, fmt.Errorf("compute: broad-phase layer table not set")
	}
	if uint32(len(proxies)) > bp.maxObjects {
		return nil, fmt.Errorf("compute: %d proxies exceed broad-phase capacity %d", len(proxies), bp.maxObjects)
	}

	proxyCount := uint32(len(proxies))
	upload(bp.dev, bp.proxyBuffer, proxies)
	upload(bp.dev, bp.countBuffer, []uint32{0})
	upload(bp.dev, bp.paramsBuffer, []params{{ProxyCount: proxyCount, LayerCount: bp.layerCount}})

	err := bp.dev.run(bp.kernel, (proxyCount+255)/256,
		bp.proxyBuffer, bp.pairBuffer, bp.countBuffer, bp.paramsBuffer, bp.layerBuffer)
	if err != nil {
		return nil, err
	}

	count, err := download[uint32](bp.dev, bp.countBuffer, 1)
	if err != nil {
		return nil, err
	}
	// The shader keeps counting past the end of the pair buffer
	n := min(count[0], bp.maxPairs)
	if n == 0 {
		return nil, nil
	}
	return download[CollisionPair](bp.dev, bp.pairBuffer, int(n))
}

// Release frees GPU resources.
func (bp *BroadPhase) Release() {
	for _, b := range []*buffer{bp.proxyBuffer, bp.pairBuffer, bp.countBuffer, bp.paramsBuffer, bp.layerBuffer} {
		b.release()
	}
	bp.proxyBuffer, bp.pairBuffer, bp.countBuffer, bp.paramsBuffer, bp.layerBuffer = nil, nil, nil, nil, nil
	if bp.kernel != nil {
		bp.kernel.release()
		bp.kernel = nil
	}
}
