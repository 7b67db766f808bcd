// Package common contains block device plumbing shared by the file system
// drivers and the command line tools: a sector-oriented device over any
// seekable stream, plus constructors for memory- and file-backed images.
package common

import (
	"fmt"
	"io"

	"github.com/dargueta/simplefs"
	"github.com/xaionaro-go/bytesextra"
)

// SectorDevice adapts an [io.ReadWriteSeeker] into a [simplefs.BlockDevice]
// with [simplefs.BlockSize]-byte sectors. It performs strict bounds checking
// and counts every successful block operation.
type SectorDevice struct {
	stream      io.ReadWriteSeeker
	totalBlocks int
	stats       simplefs.DeviceStat
}

// NewSectorDevice wraps a stream holding exactly `totalBlocks` blocks.
func NewSectorDevice(stream io.ReadWriteSeeker, totalBlocks int) *SectorDevice {
	return &SectorDevice{
		stream:      stream,
		totalBlocks: totalBlocks,
	}
}

// NewDeviceFromStream wraps a stream, determining the block count from the
// stream's current length (rounded down to a whole block).
func NewDeviceFromStream(stream io.ReadWriteSeeker) (*SectorDevice, error) {
	totalBlocks, err := DetermineBlockCount(stream, simplefs.BlockSize)
	if err != nil {
		return nil, err
	}
	return NewSectorDevice(stream, totalBlocks), nil
}

// NewMemoryDevice returns a device backed by a zero-filled in-memory image of
// `totalBlocks` blocks.
func NewMemoryDevice(totalBlocks int) *SectorDevice {
	storage := make([]byte, totalBlocks*simplefs.BlockSize)
	return NewSectorDevice(bytesextra.NewReadWriteSeeker(storage), totalBlocks)
}

// NewDeviceFromBytes returns a device backed by `storage`. Writes to the
// device modify the slice in place. The slice must be a whole number of
// blocks.
func NewDeviceFromBytes(storage []byte) (*SectorDevice, error) {
	if len(storage)%simplefs.BlockSize != 0 {
		return nil, simplefs.ErrInvalidArgument.WithMessage(
			fmt.Sprintf(
				"image must be a multiple of %d bytes, got %d",
				simplefs.BlockSize,
				len(storage),
			),
		)
	}
	stream := bytesextra.NewReadWriteSeeker(storage)
	return NewSectorDevice(stream, len(storage)/simplefs.BlockSize), nil
}

// DetermineBlockCount gives the total number of blocks in a stream, rounded
// down to the nearest block.
func DetermineBlockCount(stream io.Seeker, blockSize uint) (int, error) {
	offset, err := stream.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}
	return int(offset / int64(blockSize)), nil
}

// Size returns the total number of blocks on the device.
func (device *SectorDevice) Size() int {
	return device.totalBlocks
}

// Stat returns the device's cumulative operation counters.
func (device *SectorDevice) Stat() simplefs.DeviceStat {
	return device.stats
}

// checkAccess validates a block number and buffer before any I/O happens.
func (device *SectorDevice) checkAccess(blockNo int, buf []byte) error {
	if blockNo < 0 || blockNo >= device.totalBlocks {
		return simplefs.ErrArgumentOutOfRange.WithMessage(
			fmt.Sprintf(
				"invalid block number: %d not in range [0, %d)",
				blockNo,
				device.totalBlocks,
			),
		)
	}
	if len(buf) != simplefs.BlockSize {
		return simplefs.ErrInvalidArgument.WithMessage(
			fmt.Sprintf(
				"buffer must be exactly %d bytes, got %d",
				simplefs.BlockSize,
				len(buf),
			),
		)
	}
	return nil
}

// seekToBlock positions the stream pointer at the byte offset where the given
// block starts.
func (device *SectorDevice) seekToBlock(blockNo int) error {
	_, err := device.stream.Seek(int64(blockNo)*simplefs.BlockSize, io.SeekStart)
	return err
}

// Read copies one block from the device into `buf`.
func (device *SectorDevice) Read(blockNo int, buf []byte) error {
	err := device.checkAccess(blockNo, buf)
	if err != nil {
		return err
	}

	err = device.seekToBlock(blockNo)
	if err != nil {
		return simplefs.ErrIOFailed.Wrap(err)
	}

	bytesRead, err := io.ReadFull(device.stream, buf)
	if err != nil {
		return simplefs.ErrIOFailed.WithMessage(
			fmt.Sprintf(
				"short read of block %d: got %d of %d bytes: %s",
				blockNo,
				bytesRead,
				simplefs.BlockSize,
				err.Error(),
			),
		)
	}

	device.stats.Reads++
	return nil
}

// Write copies `buf` to one block on the device.
func (device *SectorDevice) Write(blockNo int, buf []byte) error {
	err := device.checkAccess(blockNo, buf)
	if err != nil {
		return err
	}

	err = device.seekToBlock(blockNo)
	if err != nil {
		return simplefs.ErrIOFailed.Wrap(err)
	}

	_, err = device.stream.Write(buf)
	if err != nil {
		return simplefs.ErrIOFailed.Wrap(err)
	}

	device.stats.Writes++
	return nil
}
