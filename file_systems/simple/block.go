package simple

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/dargueta/simplefs"
	"github.com/google/uuid"
	"github.com/noxer/bytewriter"
)

// Magic identifies a formatted image. It's the first four bytes of block 0.
const Magic = uint32(0xf0f03410)

const InodesPerBlock = 128
const InodeSize = 32
const PointersPerInode = 5
const PointersPerBlock = 1024

// MaxFileSize is the largest file the pointer scheme can address: five
// direct blocks plus one block's worth of indirect pointers.
const MaxFileSize = (PointersPerInode + PointersPerBlock) * simplefs.BlockSize

// volumeIDOffset is where the volume UUID sits inside block 0, immediately
// after the four header integers.
const volumeIDOffset = 16

// Superblock is the decoded form of block 0.
//
// The four header fields are fixed by the on-disk format and immutable after
// Format. VolumeID lives in what the format otherwise treats as padding;
// readers that only care about the header never see it.
type Superblock struct {
	Magic        uint32
	NBlocks      int32
	NInodeBlocks int32
	NInodes      int32
	VolumeID     uuid.UUID
}

// DecodeSuperblock interprets a raw block as a superblock. `buf` must be a
// whole block.
func DecodeSuperblock(buf []byte) Superblock {
	sb := Superblock{
		Magic:        binary.LittleEndian.Uint32(buf[0:]),
		NBlocks:      int32(binary.LittleEndian.Uint32(buf[4:])),
		NInodeBlocks: int32(binary.LittleEndian.Uint32(buf[8:])),
		NInodes:      int32(binary.LittleEndian.Uint32(buf[12:])),
	}
	copy(sb.VolumeID[:], buf[volumeIDOffset:volumeIDOffset+16])
	return sb
}

// Encode serialises the superblock into `buf`, which must be a whole block.
// Bytes past the volume ID are zeroed.
func (sb *Superblock) Encode(buf []byte) error {
	for i := range buf {
		buf[i] = 0
	}

	writer := bytewriter.New(buf)
	err := binary.Write(writer, binary.LittleEndian, sb.Magic)
	if err == nil {
		err = binary.Write(
			writer,
			binary.LittleEndian,
			[3]int32{sb.NBlocks, sb.NInodeBlocks, sb.NInodes},
		)
	}
	if err == nil {
		_, err = writer.Write(sb.VolumeID[:])
	}
	if err != nil {
		return simplefs.ErrIOFailed.Wrap(err)
	}
	return nil
}

// Validate does the arithmetic sanity checks a reader needs before trusting
// the header fields. `deviceBlocks` is the size of the underlying device.
func (sb *Superblock) Validate(deviceBlocks int) error {
	if sb.Magic != Magic {
		return simplefs.ErrInvalidFileSystem.WithMessage(
			fmt.Sprintf("bad magic number: expected %#08x, got %#08x", Magic, sb.Magic),
		)
	}
	if sb.NBlocks < 2 || int(sb.NBlocks) > deviceBlocks {
		return simplefs.ErrFileSystemCorrupted.WithMessage(
			fmt.Sprintf(
				"block count %d not in range [2, %d]", sb.NBlocks, deviceBlocks,
			),
		)
	}
	if sb.NInodeBlocks < 1 || sb.NInodeBlocks >= sb.NBlocks {
		return simplefs.ErrFileSystemCorrupted.WithMessage(
			fmt.Sprintf(
				"inode region of %d blocks doesn't fit on a %d-block volume",
				sb.NInodeBlocks,
				sb.NBlocks,
			),
		)
	}
	if sb.NInodes != sb.NInodeBlocks*InodesPerBlock {
		return simplefs.ErrFileSystemCorrupted.WithMessage(
			fmt.Sprintf(
				"inode count is %d, but %d inode blocks hold %d",
				sb.NInodes,
				sb.NInodeBlocks,
				sb.NInodeBlocks*InodesPerBlock,
			),
		)
	}
	return nil
}

// RawInode is the on-disk form of one inode: exactly 32 bytes, 128 to a
// block. A zero pointer means "unused"; block 0 is the superblock, so no
// real pointer can collide with the sentinel.
type RawInode struct {
	Valid    int32
	Size     int32
	Direct   [PointersPerInode]int32
	Indirect int32
}

// DecodeInode reads the inode in `slot` out of a raw inode-table block.
func DecodeInode(slab []byte, slot int) RawInode {
	var raw RawInode
	reader := bytes.NewReader(slab[slot*InodeSize : (slot+1)*InodeSize])
	binary.Read(reader, binary.LittleEndian, &raw)
	return raw
}

// EncodeInode writes `raw` into `slot` of a raw inode-table block.
func EncodeInode(slab []byte, slot int, raw RawInode) {
	writer := bytewriter.New(slab[slot*InodeSize : (slot+1)*InodeSize])
	binary.Write(writer, binary.LittleEndian, &raw)
}

// PointerBlock is the decoded form of an indirect block: 1024 data-block
// numbers, zero meaning "unused".
type PointerBlock [PointersPerBlock]int32

// DecodePointerBlock interprets a raw block as an array of block pointers.
func DecodePointerBlock(buf []byte) PointerBlock {
	var ptrs PointerBlock
	binary.Read(bytes.NewReader(buf), binary.LittleEndian, &ptrs)
	return ptrs
}

// Encode serialises the pointer array into `buf`, which must be a whole
// block.
func (ptrs *PointerBlock) Encode(buf []byte) {
	writer := bytewriter.New(buf)
	binary.Write(writer, binary.LittleEndian, ptrs)
}
