package simple

import (
	"fmt"
	"io"

	"github.com/dargueta/simplefs"
)

// Debug writes a human-readable dump of the superblock and every valid
// inode to `w`. It reads straight from the device and works on unmounted
// handles, so a suspect image can be inspected before mounting it.
//
// The output format is fixed; test harnesses diff it verbatim.
func (driver *Driver) Debug(w io.Writer) error {
	buf := make([]byte, simplefs.BlockSize)
	err := driver.device.Read(0, buf)
	if err != nil {
		return err
	}
	sb := DecodeSuperblock(buf)

	fmt.Fprintf(w, "superblock:\n")
	fmt.Fprintf(w, "    %d blocks\n", sb.NBlocks)
	fmt.Fprintf(w, "    %d inode blocks\n", sb.NInodeBlocks)
	fmt.Fprintf(w, "    %d inodes\n", sb.NInodes)

	// Don't trust the header on an arbitrary image; walk only the table
	// blocks that actually exist on the device.
	inodeBlocks := int(sb.NInodeBlocks)
	if inodeBlocks >= driver.device.Size() {
		inodeBlocks = driver.device.Size() - 1
	}

	slab := make([]byte, simplefs.BlockSize)
	for blockNo := 1; blockNo <= inodeBlocks; blockNo++ {
		err = driver.device.Read(blockNo, slab)
		if err != nil {
			return err
		}

		for slot := 0; slot < InodesPerBlock; slot++ {
			raw := DecodeInode(slab, slot)
			if raw.Valid == 0 {
				continue
			}
			err = driver.debugInode(w, inumberAt(blockNo, slot), raw, buf)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// debugInode prints one inode's lines. `buf` is scratch space for reading
// the indirect block.
func (driver *Driver) debugInode(
	w io.Writer, inumber Inumber, raw RawInode, buf []byte,
) error {
	fmt.Fprintf(w, "inode %d:\n", inumber)
	fmt.Fprintf(w, "    size: %d bytes\n", raw.Size)

	directBlocks := 0
	for _, blockNo := range raw.Direct {
		if blockNo == 0 {
			continue
		}
		directBlocks++
		if directBlocks == 1 {
			fmt.Fprintf(w, "    direct blocks:")
		}
		fmt.Fprintf(w, " %d", blockNo)
	}
	if directBlocks > 0 {
		fmt.Fprintf(w, "\n")
	}

	if raw.Indirect == 0 {
		return nil
	}

	err := driver.device.Read(int(raw.Indirect), buf)
	if err != nil {
		return err
	}
	ptrs := DecodePointerBlock(buf)

	fmt.Fprintf(w, "    indirect block: %d\n", raw.Indirect)
	fmt.Fprintf(w, "    indirect data blocks:")
	for _, pointee := range ptrs {
		if pointee != 0 {
			fmt.Fprintf(w, " %d", pointee)
		}
	}
	fmt.Fprintf(w, "\n")
	return nil
}
