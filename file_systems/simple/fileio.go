package simple

import (
	"fmt"
	"io"

	"github.com/dargueta/simplefs"
)

// Create allocates the first free inode slot, initialises it as a valid
// empty file, and persists the modified table block. It fails with
// ErrNoSpaceOnDevice when every slot is taken.
//
// Slot 0 of every table block is skipped so that inumber 0 stays the
// universal "no inode" sentinel.
func (driver *Driver) Create() (Inumber, error) {
	if !driver.mounted {
		return 0, simplefs.ErrNotMounted
	}

	slab := make([]byte, simplefs.BlockSize)
	for blockNo := 1; blockNo <= int(driver.super.NInodeBlocks); blockNo++ {
		err := driver.device.Read(blockNo, slab)
		if err != nil {
			return 0, err
		}

		for slot := 1; slot < InodesPerBlock; slot++ {
			if DecodeInode(slab, slot).Valid != 0 {
				continue
			}

			// A fresh inode must have all six pointers zeroed, not just the
			// valid flag set; whatever the slot held before is garbage now.
			EncodeInode(slab, slot, RawInode{Valid: 1})
			err = driver.device.Write(blockNo, slab)
			if err != nil {
				return 0, err
			}
			return inumberAt(blockNo, slot), nil
		}
	}
	return 0, simplefs.ErrNoSpaceOnDevice.WithMessage("no free inode slots")
}

// Delete releases every block the inode references (direct blocks, the
// blocks named by the indirect pointer array, and the indirect block
// itself), then invalidates the inode and persists it. Deleting an inode
// that isn't valid fails with ErrNotFound.
func (driver *Driver) Delete(inumber Inumber) error {
	raw, slab, err := driver.readInode(inumber)
	if err != nil {
		return err
	}
	if raw.Valid == 0 {
		return simplefs.ErrNotFound.WithMessage(
			fmt.Sprintf("inode %d is not in use", inumber),
		)
	}

	err = driver.releaseInodeBlocks(&raw)
	if err != nil {
		return err
	}

	// The inode goes back to disk in one block write, so the delete is
	// all-or-nothing as far as the table is concerned.
	return driver.writeInode(inumber, RawInode{}, slab)
}

// releaseInodeBlocks returns every data block owned by `raw` to the
// allocator and zeroes the pointers. The inode itself is not persisted.
func (driver *Driver) releaseInodeBlocks(raw *RawInode) error {
	for i, blockNo := range raw.Direct {
		if blockNo != 0 {
			driver.releaseBlock(blockNo)
			raw.Direct[i] = 0
		}
	}

	if raw.Indirect != 0 {
		if driver.isDataBlock(raw.Indirect) {
			buf := make([]byte, simplefs.BlockSize)
			err := driver.device.Read(int(raw.Indirect), buf)
			if err != nil {
				return err
			}
			// This walks the full pointer array, not the first few entries;
			// a file can own up to 1024 indirect data blocks.
			ptrs := DecodePointerBlock(buf)
			for _, pointee := range ptrs {
				if pointee != 0 {
					driver.releaseBlock(pointee)
				}
			}
		}
		driver.releaseBlock(raw.Indirect)
		raw.Indirect = 0
	}

	raw.Size = 0
	return nil
}

// Inode returns the on-disk form of an inode, valid or not. It's a
// read-only peek used by inspection tools; file I/O goes through ReadAt and
// WriteAt.
func (driver *Driver) Inode(inumber Inumber) (RawInode, error) {
	raw, _, err := driver.readInode(inumber)
	return raw, err
}

// GetSize returns the file size in bytes. It fails with ErrNotFound if the
// inode isn't valid.
func (driver *Driver) GetSize(inumber Inumber) (int64, error) {
	raw, _, err := driver.readInode(inumber)
	if err != nil {
		return -1, err
	}
	if raw.Valid == 0 {
		return -1, simplefs.ErrNotFound.WithMessage(
			fmt.Sprintf("inode %d is not in use", inumber),
		)
	}
	return int64(raw.Size), nil
}

// blockIndexPointer resolves a logical block index of a file to the block
// number backing it. Indices below PointersPerInode come straight from the
// inode; the rest go through the indirect pointer array, which is loaded at
// most once per call via `ptrs`.
func (driver *Driver) blockIndexPointer(
	raw *RawInode,
	ptrs **PointerBlock,
	index int,
) (int32, error) {
	if index < PointersPerInode {
		return raw.Direct[index], nil
	}

	if raw.Indirect == 0 {
		return 0, nil
	}
	if *ptrs == nil {
		buf := make([]byte, simplefs.BlockSize)
		err := driver.device.Read(int(raw.Indirect), buf)
		if err != nil {
			return 0, err
		}
		decoded := DecodePointerBlock(buf)
		*ptrs = &decoded
	}
	return (*ptrs)[index-PointersPerInode], nil
}

// ReadAt copies up to len(buf) bytes of the file into `buf`, starting at
// byte `offset`. Reads are clamped to the file size; reading at or past the
// end returns (0, io.EOF). A zero pointer inside the requested range acts
// as end-of-data.
func (driver *Driver) ReadAt(inumber Inumber, buf []byte, offset int64) (int, error) {
	raw, _, err := driver.readInode(inumber)
	if err != nil {
		return 0, err
	}
	if raw.Valid == 0 {
		return 0, simplefs.ErrNotFound.WithMessage(
			fmt.Sprintf("inode %d is not in use", inumber),
		)
	}
	if offset < 0 {
		return 0, simplefs.ErrArgumentOutOfRange.WithMessage(
			fmt.Sprintf("read offset may not be negative, got %d", offset),
		)
	}

	size := int64(raw.Size)
	if size > MaxFileSize {
		// A corrupt inode can claim any size; never walk past the pointer
		// scheme's reach.
		size = MaxFileSize
	}
	if offset >= size {
		return 0, io.EOF
	}
	end := offset + int64(len(buf))
	if end > size {
		end = size
	}

	var ptrs *PointerBlock
	blockBuf := make([]byte, simplefs.BlockSize)
	copied := 0
	pos := offset

	for pos < end {
		blockNo, err := driver.blockIndexPointer(
			&raw, &ptrs, int(pos/simplefs.BlockSize))
		if err != nil {
			return copied, err
		}
		if blockNo == 0 {
			// The declared size extends past the last allocated block;
			// treat it as end-of-data rather than failing the whole read.
			break
		}

		err = driver.device.Read(int(blockNo), blockBuf)
		if err != nil {
			return copied, err
		}

		blockStart := pos % simplefs.BlockSize
		n := simplefs.BlockSize - blockStart
		if n > end-pos {
			n = end - pos
		}
		copy(buf[copied:], blockBuf[blockStart:blockStart+n])
		copied += int(n)
		pos += n
	}
	return copied, nil
}

// WriteAt copies `data` into the file starting at byte `offset`, allocating
// backing blocks as needed.
//
// A write that starts at offset 0 first truncates the file, releasing every
// block it owned. Writes are clamped to the maximum file size; if the
// allocator runs dry mid-write, the inode is persisted with the bytes that
// did make it and the short count is returned with ErrNoSpaceOnDevice.
func (driver *Driver) WriteAt(inumber Inumber, data []byte, offset int64) (int, error) {
	raw, slab, err := driver.readInode(inumber)
	if err != nil {
		return 0, err
	}
	if raw.Valid == 0 {
		return 0, simplefs.ErrNotFound.WithMessage(
			fmt.Sprintf("inode %d is not in use", inumber),
		)
	}
	if offset < 0 {
		return 0, simplefs.ErrArgumentOutOfRange.WithMessage(
			fmt.Sprintf("write offset may not be negative, got %d", offset),
		)
	}
	if offset >= MaxFileSize {
		return 0, simplefs.ErrFileTooLarge.WithMessage(
			fmt.Sprintf(
				"write offset %d is past the maximum file size %d",
				offset,
				MaxFileSize,
			),
		)
	}

	clamped := int64(len(data))
	if offset+clamped > MaxFileSize {
		clamped = MaxFileSize - offset
	}

	if offset == 0 {
		// Writing from the top replaces the file wholesale rather than
		// patching it in place: release everything and start over.
		err = driver.releaseInodeBlocks(&raw)
		if err != nil {
			return 0, err
		}
		err = driver.writeInode(inumber, raw, slab)
		if err != nil {
			return 0, err
		}
	}

	var ptrs PointerBlock
	ptrsLoaded := false
	ptrsDirty := false
	exhausted := false
	blockBuf := make([]byte, simplefs.BlockSize)
	written := int64(0)
	pos := offset

	for written < clamped {
		index := int(pos / simplefs.BlockSize)
		blockNo, fresh, err := driver.ensureBackingBlock(
			&raw, &ptrs, &ptrsLoaded, &ptrsDirty, index)
		if err != nil {
			return int(written), err
		}
		if blockNo == 0 {
			exhausted = true
			break
		}

		blockStart := pos % simplefs.BlockSize
		n := simplefs.BlockSize - blockStart
		if n > clamped-written {
			n = clamped - written
		}

		if n < simplefs.BlockSize {
			// Partial block: keep the bytes outside the written range. A
			// freshly allocated block has no old occupant worth keeping, so
			// it starts out zeroed instead of being read back.
			if fresh {
				for i := range blockBuf {
					blockBuf[i] = 0
				}
			} else {
				err = driver.device.Read(int(blockNo), blockBuf)
				if err != nil {
					return int(written), err
				}
			}
		}
		copy(blockBuf[blockStart:], data[written:written+n])

		err = driver.device.Write(int(blockNo), blockBuf)
		if err != nil {
			return int(written), err
		}
		written += n
		pos += n
	}

	// Grow the size only over bytes that actually landed; a write that got
	// nothing down must not declare a size its blocks don't cover.
	if written > 0 && offset+written > int64(raw.Size) {
		raw.Size = int32(offset + written)
	}

	// Persist the indirect block before the inode that points at it. The
	// blocks themselves were marked used at allocation time, ahead of any
	// pointer naming them reaching the disk.
	if ptrsDirty {
		ptrs.Encode(blockBuf)
		err = driver.device.Write(int(raw.Indirect), blockBuf)
		if err != nil {
			return int(written), err
		}
	}
	err = driver.writeInode(inumber, raw, slab)
	if err != nil {
		return int(written), err
	}

	if exhausted && written < clamped {
		return int(written), simplefs.ErrNoSpaceOnDevice.WithMessage(
			fmt.Sprintf(
				"allocator exhausted after %d of %d bytes", written, clamped,
			),
		)
	}
	if clamped < int64(len(data)) {
		return int(written), simplefs.ErrFileTooLarge.WithMessage(
			fmt.Sprintf(
				"write truncated to %d of %d bytes at the maximum file size",
				clamped,
				len(data),
			),
		)
	}
	return int(written), nil
}

// ensureBackingBlock returns the block backing a logical block index,
// allocating the block (and, for indirect indices, the indirect block)
// when missing. It returns 0 when the allocator is exhausted, and reports
// whether the returned block was freshly allocated.
func (driver *Driver) ensureBackingBlock(
	raw *RawInode,
	ptrs *PointerBlock,
	ptrsLoaded *bool,
	ptrsDirty *bool,
	index int,
) (blockNo int32, fresh bool, err error) {
	if index < PointersPerInode {
		if raw.Direct[index] != 0 {
			return raw.Direct[index], false, nil
		}
		blockNo = driver.allocateBlock()
		if blockNo == 0 {
			return 0, false, nil
		}
		raw.Direct[index] = blockNo
		return blockNo, true, nil
	}

	if raw.Indirect == 0 {
		indirect := driver.allocateBlock()
		if indirect == 0 {
			return 0, false, nil
		}
		raw.Indirect = indirect
		*ptrs = PointerBlock{}
		*ptrsLoaded = true
		*ptrsDirty = true
	}
	if !*ptrsLoaded {
		buf := make([]byte, simplefs.BlockSize)
		err = driver.device.Read(int(raw.Indirect), buf)
		if err != nil {
			return 0, false, err
		}
		*ptrs = DecodePointerBlock(buf)
		*ptrsLoaded = true
	}

	slot := index - PointersPerInode
	if ptrs[slot] != 0 {
		return ptrs[slot], false, nil
	}
	blockNo = driver.allocateBlock()
	if blockNo == 0 {
		return 0, false, nil
	}
	ptrs[slot] = blockNo
	*ptrsDirty = true
	return blockNo, true, nil
}
