// Package testing provides helpers for constructing in-memory disk images
// and drivers inside tests. Nothing here is used by the library itself.
package testing

import (
	"testing"

	"github.com/dargueta/simplefs"
	"github.com/dargueta/simplefs/drivers/common"
	"github.com/dargueta/simplefs/file_systems/simple"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"
)

// NewBlankDevice returns a zero-filled in-memory device of the given size,
// along with the backing slice so tests can inspect raw bytes directly.
func NewBlankDevice(t *testing.T, totalBlocks int) (*common.SectorDevice, []byte) {
	storage := make([]byte, totalBlocks*simplefs.BlockSize)
	device, err := common.NewDeviceFromBytes(storage)
	require.NoError(t, err, "failed to wrap %d-block image", totalBlocks)
	require.Equal(t, totalBlocks, device.Size())
	return device, storage
}

// NewDeviceFromBytes wraps an existing image, failing the test on size
// mismatch instead of returning an error.
func NewDeviceFromBytes(t *testing.T, storage []byte) *common.SectorDevice {
	device, err := common.NewDeviceFromBytes(storage)
	require.NoError(t, err, "failed to wrap %d-byte image", len(storage))
	return device
}

// NewMountedDriver formats a blank in-memory image of the given size and
// mounts a driver on it. It is guaranteed to either return a usable driver
// or fail the test.
func NewMountedDriver(t *testing.T, totalBlocks int) *simple.Driver {
	device, _ := NewBlankDevice(t, totalBlocks)
	driver := simple.NewDriver(device)

	require.NoError(t, driver.Format(), "formatting a blank %d-block image failed", totalBlocks)
	require.NoError(t, driver.Mount(), "mounting a freshly formatted image failed")
	return driver
}

// Remount gives the same image to a brand-new driver, so a test can verify
// what a fresh mount reconstructs from disk alone.
func Remount(t *testing.T, storage []byte) *simple.Driver {
	device, err := common.NewDeviceFromBytes(storage)
	require.NoError(t, err)
	driver := simple.NewDriver(device)
	require.NoError(t, driver.Mount(), "remounting the image failed")
	return driver
}

// PatternBytes returns `size` bytes of a deterministic, position-dependent
// pattern, handy for verifying that reads come back from the right offsets.
func PatternBytes(size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte((i*7 + i/251) % 256)
	}
	return data
}

// NewStreamDevice wraps raw bytes in a seekable stream and a device over
// it, for tests that need to exercise the stream-backed constructor path.
func NewStreamDevice(t *testing.T, storage []byte) *common.SectorDevice {
	stream := bytesextra.NewReadWriteSeeker(storage)
	device, err := common.NewDeviceFromStream(stream)
	require.NoError(t, err)
	return device
}
