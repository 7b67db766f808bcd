package simple

import (
	"fmt"

	bitmap "github.com/boljen/go-bitmap"
	"github.com/dargueta/simplefs"
	"github.com/hashicorp/go-multierror"
)

// Check walks the mounted file system and reports every structural problem
// it can find, not just the first: header arithmetic that doesn't add up,
// pointers outside the data region, blocks referenced more than once,
// invalid inodes carrying leftover state, and files whose declared size
// exceeds what their blocks can hold.
//
// A clean volume yields nil. Check never modifies the image.
func (driver *Driver) Check() error {
	if !driver.mounted {
		return simplefs.ErrNotMounted
	}

	var result *multierror.Error
	sb := driver.super

	if int(sb.NBlocks) != driver.device.Size() {
		result = multierror.Append(result, simplefs.ErrFileSystemCorrupted.WithMessage(
			fmt.Sprintf(
				"superblock says %d blocks but the device has %d",
				sb.NBlocks,
				driver.device.Size(),
			),
		))
	}
	if sb.NInodeBlocks < (sb.NBlocks+9)/10 {
		result = multierror.Append(result, simplefs.ErrFileSystemCorrupted.WithMessage(
			fmt.Sprintf(
				"inode region is %d blocks; a %d-block volume reserves at least %d",
				sb.NInodeBlocks,
				sb.NBlocks,
				(sb.NBlocks+9)/10,
			),
		))
	}

	// One bit per block, tracking which blocks some inode already claimed.
	// Two files owning the same block is how images eat themselves.
	seen := bitmap.New(int(sb.NBlocks))

	claim := func(inumber Inumber, what string, blockNo int32) {
		if !driver.isDataBlock(blockNo) {
			result = multierror.Append(result, simplefs.ErrFileSystemCorrupted.WithMessage(
				fmt.Sprintf(
					"inode %d: %s %d not in data region (%d, %d)",
					inumber,
					what,
					blockNo,
					sb.NInodeBlocks,
					sb.NBlocks,
				),
			))
			return
		}
		if seen.Get(int(blockNo)) {
			result = multierror.Append(result, simplefs.ErrFileSystemCorrupted.WithMessage(
				fmt.Sprintf(
					"inode %d: %s %d is referenced more than once",
					inumber,
					what,
					blockNo,
				),
			))
			return
		}
		seen.Set(int(blockNo), true)
	}

	slab := make([]byte, simplefs.BlockSize)
	ptrBuf := make([]byte, simplefs.BlockSize)
	for blockNo := 1; blockNo <= int(sb.NInodeBlocks); blockNo++ {
		err := driver.device.Read(blockNo, slab)
		if err != nil {
			return multierror.Append(result, err).ErrorOrNil()
		}

		for slot := 0; slot < InodesPerBlock; slot++ {
			inumber := inumberAt(blockNo, slot)
			raw := DecodeInode(slab, slot)

			if raw.Valid == 0 {
				if raw.Size != 0 || raw.Indirect != 0 || raw.Direct != [PointersPerInode]int32{} {
					result = multierror.Append(result, simplefs.ErrFileSystemCorrupted.WithMessage(
						fmt.Sprintf(
							"inode %d is invalid but carries a size or pointers",
							inumber,
						),
					))
				}
				continue
			}

			if raw.Size < 0 || int64(raw.Size) > MaxFileSize {
				result = multierror.Append(result, simplefs.ErrFileSystemCorrupted.WithMessage(
					fmt.Sprintf(
						"inode %d: size %d not in range [0, %d]",
						inumber,
						raw.Size,
						int64(MaxFileSize),
					),
				))
			}

			ownedBlocks := int64(0)
			for _, pointee := range raw.Direct {
				if pointee != 0 {
					claim(inumber, "direct block", pointee)
					ownedBlocks++
				}
			}

			if raw.Indirect != 0 {
				claim(inumber, "indirect block", raw.Indirect)
				if driver.isDataBlock(raw.Indirect) {
					err = driver.device.Read(int(raw.Indirect), ptrBuf)
					if err != nil {
						return multierror.Append(result, err).ErrorOrNil()
					}
					ptrs := DecodePointerBlock(ptrBuf)
					for _, pointee := range ptrs {
						if pointee != 0 {
							claim(inumber, "indirect data block", pointee)
							ownedBlocks++
						}
					}
				}
			}

			// Allocated blocks must always cover the declared size.
			neededBlocks := (int64(raw.Size) + simplefs.BlockSize - 1) / simplefs.BlockSize
			if raw.Size >= 0 && neededBlocks > ownedBlocks {
				result = multierror.Append(result, simplefs.ErrFileSystemCorrupted.WithMessage(
					fmt.Sprintf(
						"inode %d: size %d needs %d blocks but only %d are allocated",
						inumber,
						raw.Size,
						neededBlocks,
						ownedBlocks,
					),
				))
			}
		}
	}

	return result.ErrorOrNil()
}
