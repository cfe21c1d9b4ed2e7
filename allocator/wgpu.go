//go:build cgo

package allocator

import (
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/openfluke/webgpu/wgpu"
	"github.com/pkg/errors"
)

// WebGPUDevice adapts a wgpu.Device to the Device interface. Each texture is
// backed by a storage buffer of width*height texels, 4 elements per texel.
type WebGPUDevice struct {
	device *wgpu.Device
}

// NewWebGPUDevice wraps an already-initialized WebGPU device.
func NewWebGPUDevice(device *wgpu.Device) *WebGPUDevice {
	return &WebGPUDevice{device: device}
}

// AllocTexture implements Device.
func (d *WebGPUDevice) AllocTexture(width, height int64, dtype dtypes.DType) (Texture, error) {
	size := uint64(width) * uint64(height) * 4 * uint64(dtype.Memory())
	buf, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "texture2d",
		Size:  size,
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "allocating %dx%d texture buffer (%s)", width, height, dtype)
	}
	return buf, nil
}

// FreeTexture implements Device.
func (d *WebGPUDevice) FreeTexture(tex Texture) error {
	buf, ok := tex.(*wgpu.Buffer)
	if !ok {
		return errors.Errorf("FreeTexture: not a WebGPU texture: %T", tex)
	}
	buf.Destroy()
	return nil
}
