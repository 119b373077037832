package gpucompute

import "bytes"

// DatasetKey is the dataset cache identity: voxel buffer base address
// plus byte count. No content hashing.
type DatasetKey struct {
	Ptr  uintptr
	Size int
}

// ResourceCache holds the single active volume texture and transfer
// texture, keyed per the caching rules: datasets by memory identity,
// transfer functions by value (represented here by their derived LUT
// bytes, which are a pure function of the transfer value). Owned
// exclusively by the renderer; entries are invalidated on key mismatch
// and otherwise reused across renders.
type ResourceCache struct {
	dev *Device

	volKey DatasetKey
	volume *VolumeTexture

	transfer *TransferTexture
}

// NewResourceCache creates an empty cache bound to dev.
func NewResourceCache(dev *Device) *ResourceCache {
	return &ResourceCache{dev: dev}
}

// Volume returns the cached volume texture for key, uploading desc on a
// miss. hit reports whether the cached entry was reused.
func (c *ResourceCache) Volume(key DatasetKey, desc VolumeDesc) (tex *VolumeTexture, hit bool, err error) {
	if c.volume != nil && c.volKey == key {
		return c.volume, true, nil
	}
	if c.volume != nil {
		slogger().Debug("gpucompute: dataset cache invalidated",
			"old_size", c.volKey.Size, "new_size", key.Size)
		c.volume.Destroy()
		c.volume = nil
	}
	tex, err = GenerateVolumeTexture(c.dev, desc)
	if err != nil {
		return nil, false, err
	}
	c.volKey = key
	c.volume = tex
	return tex, false, nil
}

// Transfer returns the cached transfer texture for lut, uploading on a
// miss. Equal transfer functions derive equal LUTs, so byte equality of
// the LUT is the cache key.
func (c *ResourceCache) Transfer(lut []byte) (tex *TransferTexture, hit bool, err error) {
	if c.transfer != nil && bytes.Equal(c.transfer.LUT, lut) {
		return c.transfer, true, nil
	}
	if c.transfer != nil {
		slogger().Debug("gpucompute: transfer cache invalidated")
		c.transfer.Destroy()
		c.transfer = nil
	}
	tex, err = GenerateTransferTexture(c.dev, lut)
	if err != nil {
		return nil, false, err
	}
	c.transfer = tex
	return tex, false, nil
}

// InvalidateVolume drops the cached volume so the next Volume call
// re-uploads. Used after an out-of-band eviction signal.
func (c *ResourceCache) InvalidateVolume() {
	if c.volume != nil {
		c.volume.Destroy()
		c.volume = nil
	}
	c.volKey = DatasetKey{}
}

// InvalidateTransfer drops the cached transfer texture.
func (c *ResourceCache) InvalidateTransfer() {
	if c.transfer != nil {
		c.transfer.Destroy()
		c.transfer = nil
	}
}

// Destroy releases all cached resources.
func (c *ResourceCache) Destroy() {
	c.InvalidateVolume()
	c.InvalidateTransfer()
}
