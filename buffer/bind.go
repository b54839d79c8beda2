// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package buffer

import (
	"image"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/hwc"
	"github.com/gogpu/hwc/internal/imagecache"
)

// ContextID identifies a rendering context for the lifetime of the
// process. IDs are never reused.
type ContextID uint64

var nextContext atomic.Uint64

// NewContextID returns a fresh context identity.
func NewContextID() ContextID { return ContextID(nextContext.Add(1)) }

// ImageBinder is a rendering context able to create GPU images from
// buffer contents.
type ImageBinder interface {
	// ContextID returns the identity of the context.
	ContextID() ContextID

	// TextureCreator returns the creator for images of this context.
	TextureCreator() gpucontext.TextureCreator
}

// Image is a GPU image bound to a buffer for one rendering context.
type Image = gpucontext.Texture

type bindingKey struct {
	ctx ContextID
	buf Handle
}

func hashBindingKey(k bindingKey) uint64 {
	return imagecache.Mix64(uint64(k.ctx), uint64(k.buf))
}

type binding struct {
	mu         sync.Mutex
	tex        gpucontext.Texture
	generation uint64
}

func (b *binding) destroy() {
	if d, ok := b.tex.(interface{ Destroy() }); ok {
		d.Destroy()
	}
}

// bindings holds one image per (context, buffer) pair for the whole
// process.
var bindings = imagecache.New[bindingKey, *binding](hashBindingKey)

// Bind returns the image for b in the binder's context, creating it on the
// first bind. Later binds reuse the image and refresh its pixels if the
// buffer was written since, when the texture supports updates.
func (b *Buffer) Bind(binder ImageBinder) (Image, error) {
	const op = "buffer.Bind"
	ctx := binder.ContextID()
	key := bindingKey{ctx: ctx, buf: b.handle}

	bnd, hit, err := bindings.GetOrCreate(key, func() (*binding, error) {
		gen := b.generation.Load()
		rgba, err := b.rgba("buffer.Bind")
		if err != nil {
			return nil, err
		}
		tex, err := binder.TextureCreator().NewTextureFromRGBA(b.desc.Size.Width, b.desc.Size.Height, rgba)
		if err != nil {
			return nil, err
		}
		return &binding{tex: tex, generation: gen}, nil
	})
	if err != nil {
		return nil, hwc.NewError(hwc.KindResourceAcquisition, op, err)
	}
	if !hit {
		b.bindMu.Lock()
		if b.contexts != nil {
			b.contexts[ctx] = struct{}{}
		}
		b.bindMu.Unlock()
		return bnd.tex, nil
	}

	bnd.mu.Lock()
	defer bnd.mu.Unlock()
	gen := b.generation.Load()
	if gen == bnd.generation {
		return bnd.tex, nil
	}
	up, ok := bnd.tex.(gpucontext.TextureUpdater)
	if !ok {
		return bnd.tex, nil
	}
	rgba, err := b.rgba("buffer.Bind")
	if err != nil {
		return nil, hwc.NewError(hwc.KindResourceAcquisition, op, err)
	}
	if err := up.UpdateData(rgba); err != nil {
		return nil, hwc.NewError(hwc.KindResourceAcquisition, op, err)
	}
	bnd.generation = gen
	return bnd.tex, nil
}

func (b *Buffer) rgba(op string) ([]byte, error) {
	var (
		out []byte
		ok  bool
	)
	err := b.Read(func(pix []byte, stride int) {
		out, ok = toRGBA(b.desc.Format, pix, stride, b.desc.Size.Width, b.desc.Size.Height)
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, hwc.Errorf(hwc.KindUnsupported, op, "no sampling path for %v", b.desc.Format)
	}
	return out, nil
}

// RGBA returns a copy of the pixels converted to an RGBA image.
func (b *Buffer) RGBA() (*image.RGBA, error) {
	pix, err := b.rgba("buffer.RGBA")
	if err != nil {
		return nil, err
	}
	return &image.RGBA{Pix: pix, Stride: b.desc.Size.Width * 4, Rect: b.desc.Size.Rect()}, nil
}

// ReleaseContextImages destroys every image bound for ctx. A rendering
// context calls it when it is torn down.
func ReleaseContextImages(ctx ContextID) int {
	removed := bindings.DeleteFunc(func(k bindingKey) bool { return k.ctx == ctx })
	for _, bnd := range removed {
		bnd.destroy()
	}
	return len(removed)
}

// BindingStats returns statistics of the process-wide binding table.
func BindingStats() imagecache.Stats { return bindings.Stats() }
