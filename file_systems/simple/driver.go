package simple

import (
	"fmt"
	"io"

	bitmap "github.com/boljen/go-bitmap"
	"github.com/dargueta/simplefs"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// log is the package logger. It discards everything until a caller installs
// a real logger with SetLogger.
var log = newDiscardLogger()

func newDiscardLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// SetLogger redirects the package's diagnostic output.
func SetLogger(logger *logrus.Logger) {
	log = logger
}

// Driver is a handle to one file system on one block device. The zero value
// is unusable; get one from NewDriver.
//
// A driver is either mounted or not. Format works only on an unmounted
// handle; every file operation requires a mounted one. The free-block
// bitmap lives exactly as long as the mount.
type Driver struct {
	device  simplefs.BlockDevice
	super   Superblock
	freeMap bitmap.Bitmap
	mounted bool
}

func NewDriver(device simplefs.BlockDevice) *Driver {
	return &Driver{device: device}
}

// Mounted reports whether the handle currently has the image mounted.
func (driver *Driver) Mounted() bool {
	return driver.mounted
}

// Format writes a fresh, empty file system across the whole device: a new
// superblock with a newly generated volume ID, and an inode table with every
// slot invalid. Existing data blocks are not touched; they simply become
// unreferenced.
//
// Formatting a mounted handle fails with ErrBusy.
func (driver *Driver) Format() error {
	if driver.mounted {
		return simplefs.ErrBusy.WithMessage("cannot format a mounted file system")
	}

	nblocks := driver.device.Size()
	if nblocks < 2 {
		return simplefs.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("device must be at least 2 blocks, got %d", nblocks),
		)
	}

	// One tenth of the volume, rounded up, is reserved for inodes.
	ninodeblocks := (nblocks + 9) / 10

	sb := Superblock{
		Magic:        Magic,
		NBlocks:      int32(nblocks),
		NInodeBlocks: int32(ninodeblocks),
		NInodes:      int32(ninodeblocks * InodesPerBlock),
		VolumeID:     uuid.New(),
	}

	// Invalidate the inode table first; the superblock goes out last so a
	// half-formatted image never carries a valid magic over a stale table.
	buf := make([]byte, simplefs.BlockSize)
	for blockNo := 1; blockNo <= ninodeblocks; blockNo++ {
		err := driver.device.Write(blockNo, buf)
		if err != nil {
			return err
		}
	}

	err := sb.Encode(buf)
	if err != nil {
		return err
	}
	err = driver.device.Write(0, buf)
	if err != nil {
		return err
	}

	log.Debugf(
		"formatted image %s: %d blocks, %d inode blocks, %d inodes",
		sb.VolumeID,
		sb.NBlocks,
		sb.NInodeBlocks,
		sb.NInodes,
	)
	return nil
}

// Mount validates the superblock and rebuilds the in-memory free-block
// bitmap by scanning the inode table. Mounting an already-mounted handle
// fails with ErrAlreadyInProgress.
func (driver *Driver) Mount() error {
	if driver.mounted {
		return simplefs.ErrAlreadyInProgress.WithMessage(
			"file system is already mounted",
		)
	}

	buf := make([]byte, simplefs.BlockSize)
	err := driver.device.Read(0, buf)
	if err != nil {
		return err
	}

	sb := DecodeSuperblock(buf)
	err = sb.Validate(driver.device.Size())
	if err != nil {
		return err
	}

	driver.super = sb
	err = driver.buildFreeMap()
	if err != nil {
		driver.super = Superblock{}
		return err
	}

	driver.mounted = true
	log.Debugf(
		"mounted image %s: %d blocks, %d free",
		sb.VolumeID,
		sb.NBlocks,
		driver.countFreeBlocks(),
	)
	return nil
}

// Unmount releases the free bitmap and returns the handle to its unmounted
// state. There is nothing to flush: every operation writes through before
// returning.
func (driver *Driver) Unmount() error {
	if !driver.mounted {
		return simplefs.ErrNotMounted
	}
	driver.freeMap = nil
	driver.super = Superblock{}
	driver.mounted = false
	return nil
}

// FSStat returns volume statistics for the mounted file system. The inode
// counts require a pass over the inode table.
func (driver *Driver) FSStat() (simplefs.FSStat, error) {
	if !driver.mounted {
		return simplefs.FSStat{}, simplefs.ErrNotMounted
	}

	usedInodes := uint64(0)
	slab := make([]byte, simplefs.BlockSize)
	for blockNo := 1; blockNo <= int(driver.super.NInodeBlocks); blockNo++ {
		err := driver.device.Read(blockNo, slab)
		if err != nil {
			return simplefs.FSStat{}, err
		}
		for slot := 0; slot < InodesPerBlock; slot++ {
			if DecodeInode(slab, slot).Valid != 0 {
				usedInodes++
			}
		}
	}

	// Slot 0 of each inode block is never allocated, so it doesn't count as
	// free capacity.
	usableInodes := uint64(driver.super.NInodeBlocks) * (InodesPerBlock - 1)

	return simplefs.FSStat{
		BlockSize:   simplefs.BlockSize,
		TotalBlocks: uint64(driver.super.NBlocks),
		BlocksFree:  driver.countFreeBlocks(),
		InodeBlocks: uint64(driver.super.NInodeBlocks),
		Files:       usedInodes,
		FilesFree:   usableInodes - usedInodes,
		Label:       driver.super.VolumeID.String(),
	}, nil
}
