// Package allocator implements a bounded best-fit pool of 2D device textures.
//
// Tensor programs lowered to image-backed memory allocate and release
// short-lived 2D textures at a high rate; the pool keeps released textures on
// a free list and satisfies new requests by exact reuse, by growing a
// near-fitting block, or by a fresh device allocation, in that order. Growing
// minimizes the added size first and the wasted size thereafter.
//
// The pool is not safe for concurrent use; callers serialize access per device.
package allocator

import (
	"math"

	. "github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"go.uber.org/multierr"
	"k8s.io/klog/v2"
)

// Texture is an opaque device texture handle, as returned by a Device.
type Texture any

// Device is the device-memory interface the pool allocates from. Width and
// height are in texels; every texel holds 4 elements of the given dtype.
type Device interface {
	AllocTexture(width, height int64, dtype dtypes.DType) (Texture, error)
	FreeTexture(tex Texture) error
}

type entry struct {
	tex   Texture
	x, y  int64
	dtype dtypes.DType
}

// Pool is a best-fit pool of 2D textures on one device. Use NewPool to create one.
type Pool struct {
	device    Device
	freeList  []entry
	allocated []entry
}

// NewPool returns an empty pool allocating from the given device.
func NewPool(device Device) *Pool {
	return &Pool{device: device}
}

// Alloc returns a texture of at least width x height texels of the given
// dtype, reusing or growing a previously freed texture when possible.
func (p *Pool) Alloc(width, height int64, dtype dtypes.DType) (Texture, error) {
	var e entry
	if len(p.freeList) != 0 {
		minAddedX := int64(math.MaxInt64)
		minAddedY := int64(math.MaxInt64)
		minWastedX := int64(math.MaxInt64)
		minWastedY := int64(math.MaxInt64)
		best := -1
		for ii, it := range p.freeList {
			if it.dtype != dtype {
				continue
			}
			newX := max(it.x, width)
			newY := max(it.y, height)
			addedX := newX - it.x
			addedY := newY - it.y
			wastedX := newX - width
			wastedY := newY - height
			// Minimize added size first and wasted size thereafter.
			if (minAddedX > 0 && addedX < minAddedX) || (minAddedY > 0 && addedY < minAddedY) ||
				(minAddedX == addedX && wastedX < minWastedX) || (minAddedY == addedY && wastedY < minWastedY) {
				minAddedX = addedX
				minAddedY = addedY
				minWastedX = wastedX
				minWastedY = wastedY
				best = ii
			}
		}

		if best >= 0 {
			if minAddedX == 0 && minAddedY == 0 {
				// Use the existing block.
				e = p.freeList[best]
				p.freeList = append(p.freeList[:best], p.freeList[best+1:]...)
				klog.V(1).Infof("allocator: reusing %dx%d texture for %dx%d request", e.x, e.y, width, height)
			} else if minAddedX <= width || minAddedY <= height {
				// The added size is less than what a fresh allocation would
				// cost: grow the entry instead.
				grown := p.freeList[best]
				p.freeList = append(p.freeList[:best], p.freeList[best+1:]...)
				if err := p.device.FreeTexture(grown.tex); err != nil {
					return nil, err
				}
				e = entry{x: max(grown.x, width), y: max(grown.y, height), dtype: dtype}
				tex, err := p.device.AllocTexture(e.x, e.y, dtype)
				if err != nil {
					return nil, err
				}
				e.tex = tex
				klog.V(1).Infof("allocator: grew %dx%d texture to %dx%d", grown.x, grown.y, e.x, e.y)
			}
		}
	}

	if e.tex == nil {
		// Create a new block.
		tex, err := p.device.AllocTexture(width, height, dtype)
		if err != nil {
			return nil, err
		}
		e = entry{tex: tex, x: width, y: height, dtype: dtype}
		klog.V(1).Infof("allocator: fresh %dx%d texture", width, height)
	}

	p.allocated = append(p.allocated, e)
	return e.tex, nil
}

// Free returns the texture to the pool's free list. Freeing a texture the pool
// never allocated is an invariant violation and panics.
func (p *Pool) Free(tex Texture) {
	var e entry
	if n := len(p.allocated); n > 0 && p.allocated[n-1].tex == tex {
		// Quick path, last allocated.
		e = p.allocated[n-1]
		p.allocated = p.allocated[:n-1]
	} else {
		index := len(p.allocated) - 2
		for ; index >= 0 && p.allocated[index].tex != tex; index-- {
		}
		if index < 0 {
			Panicf("allocator: attempt to free texture that has not been allocated")
		}
		e = p.allocated[index]
		p.allocated = append(p.allocated[:index], p.allocated[index+1:]...)
	}
	p.freeList = append(p.freeList, e)
}

// Release frees all textures held by the pool, allocated and free alike,
// accumulating any device errors.
func (p *Pool) Release() (err error) {
	for _, e := range p.allocated {
		err = multierr.Append(err, p.device.FreeTexture(e.tex))
	}
	for _, e := range p.freeList {
		err = multierr.Append(err, p.device.FreeTexture(e.tex))
	}
	p.allocated = nil
	p.freeList = nil
	return
}
