package simple

import (
	bitmap "github.com/boljen/go-bitmap"
	"github.com/dargueta/simplefs"
)

// The free-block bitmap is in-memory only and lives for the duration of a
// mount. A set bit means the block is in use; there is no on-disk free list
// to keep coherent, the bitmap is reconstructed from the inode pointers
// every time the image is mounted.

// buildFreeMap scans the inode table and marks every reachable block as
// used: the superblock, the inode-table blocks themselves, every nonzero
// direct pointer of every valid inode, and each indirect block along with
// every nonzero pointer inside it. Everything else is free.
//
// Pointers outside the data region are skipped here so a damaged image can
// still be mounted and inspected; Check reports them.
func (driver *Driver) buildFreeMap() error {
	freeMap := bitmap.New(int(driver.super.NBlocks))

	// The superblock and the inode table belong to the file system skeleton
	// and are always in use, whether or not any inode inside is valid.
	for blockNo := 0; blockNo <= int(driver.super.NInodeBlocks); blockNo++ {
		freeMap.Set(blockNo, true)
	}
	driver.freeMap = freeMap

	slab := make([]byte, simplefs.BlockSize)
	ptrBuf := make([]byte, simplefs.BlockSize)
	for blockNo := 1; blockNo <= int(driver.super.NInodeBlocks); blockNo++ {
		err := driver.device.Read(blockNo, slab)
		if err != nil {
			driver.freeMap = nil
			return err
		}

		for slot := 0; slot < InodesPerBlock; slot++ {
			raw := DecodeInode(slab, slot)
			if raw.Valid == 0 {
				continue
			}

			for _, pointee := range raw.Direct {
				driver.markUsed(pointee)
			}

			if raw.Indirect == 0 {
				continue
			}
			driver.markUsed(raw.Indirect)
			if !driver.isDataBlock(raw.Indirect) {
				continue
			}
			err = driver.device.Read(int(raw.Indirect), ptrBuf)
			if err != nil {
				driver.freeMap = nil
				return err
			}
			ptrs := DecodePointerBlock(ptrBuf)
			for _, pointee := range ptrs {
				driver.markUsed(pointee)
			}
		}
	}
	return nil
}

// isDataBlock reports whether a block number lies in the data region, i.e.
// past the inode table and inside the volume.
func (driver *Driver) isDataBlock(blockNo int32) bool {
	return blockNo > driver.super.NInodeBlocks && blockNo < driver.super.NBlocks
}

// markUsed sets the bitmap bit for a block. Zero pointers and out-of-range
// block numbers are ignored.
func (driver *Driver) markUsed(blockNo int32) {
	if driver.isDataBlock(blockNo) {
		driver.freeMap.Set(int(blockNo), true)
	}
}

// allocateBlock hands out the first free block in the data region and marks
// it used. It returns 0 when the volume is full; 0 can double as the failure
// sentinel because the superblock is never free.
func (driver *Driver) allocateBlock() int32 {
	for blockNo := int(driver.super.NInodeBlocks) + 1; blockNo < int(driver.super.NBlocks); blockNo++ {
		if !driver.freeMap.Get(blockNo) {
			driver.freeMap.Set(blockNo, true)
			return int32(blockNo)
		}
	}
	log.Debugf("allocation failed: no free blocks on volume %s", driver.super.VolumeID)
	return 0
}

// releaseBlock clears the bitmap bit for a block. Block numbers outside the
// data region are ignored; in particular the superblock and the inode table
// can never be released.
func (driver *Driver) releaseBlock(blockNo int32) {
	if driver.isDataBlock(blockNo) {
		driver.freeMap.Set(int(blockNo), false)
	}
}

// countFreeBlocks returns the number of clear bits in the bitmap.
func (driver *Driver) countFreeBlocks() uint64 {
	free := uint64(0)
	for blockNo := 0; blockNo < int(driver.super.NBlocks); blockNo++ {
		if !driver.freeMap.Get(blockNo) {
			free++
		}
	}
	return free
}
