package simple

import (
	"fmt"

	"github.com/dargueta/simplefs"
)

// Inumber identifies an inode. 0 is the "no inode" sentinel and is never a
// real inode.
//
// The mapping between inumbers and table positions is
// inumber = (block − 1) × 128 + slot. Slot 0 of every inode block is never
// handed out by Create, so inumbers that are multiples of 128 stay
// permanently invalid; this keeps the sentinel and the formula uniform at
// the cost of one inode per table block.
type Inumber int32

// inodeLocation converts an inumber into its table position.
func inodeLocation(inumber Inumber) (blockNo, slot int) {
	return int(inumber)/InodesPerBlock + 1, int(inumber) % InodesPerBlock
}

// inumberAt is the inverse of inodeLocation.
func inumberAt(blockNo, slot int) Inumber {
	return Inumber((blockNo-1)*InodesPerBlock + slot)
}

// checkInumber validates that an inumber addresses a slot inside the inode
// table. It says nothing about whether the inode is valid.
func (driver *Driver) checkInumber(inumber Inumber) error {
	blockNo, _ := inodeLocation(inumber)
	if inumber < 1 || int32(inumber) > driver.super.NInodes ||
		blockNo > int(driver.super.NInodeBlocks) {
		return simplefs.ErrArgumentOutOfRange.WithMessage(
			fmt.Sprintf(
				"invalid inumber: %d not in range [1, %d)",
				inumber,
				driver.super.NInodes,
			),
		)
	}
	return nil
}

// readInode fetches the inode-table block holding `inumber` and decodes the
// inode. The raw block is returned alongside so a caller that mutates the
// inode can re-encode into it and write it back as a unit.
func (driver *Driver) readInode(inumber Inumber) (RawInode, []byte, error) {
	if !driver.mounted {
		return RawInode{}, nil, simplefs.ErrNotMounted
	}
	err := driver.checkInumber(inumber)
	if err != nil {
		return RawInode{}, nil, err
	}

	blockNo, slot := inodeLocation(inumber)
	slab := make([]byte, simplefs.BlockSize)
	err = driver.device.Read(blockNo, slab)
	if err != nil {
		return RawInode{}, nil, err
	}
	return DecodeInode(slab, slot), slab, nil
}

// writeInode re-encodes `raw` into its slot in `slab` and persists the block.
// The inode descriptor hits the disk in a single block write, so a mutation
// is never half-committed.
func (driver *Driver) writeInode(inumber Inumber, raw RawInode, slab []byte) error {
	blockNo, slot := inodeLocation(inumber)
	EncodeInode(slab, slot, raw)
	return driver.device.Write(blockNo, slab)
}
