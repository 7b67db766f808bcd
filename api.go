// Package simplefs defines the public surface shared by the block device
// implementations and the file system driver: the block device contract,
// volume statistics, and the error sentinels.
package simplefs

// BlockSize is the fundamental unit of I/O, in bytes. Every device read and
// write moves exactly one block, and all on-disk structures are laid out in
// multiples of it.
const BlockSize = 4096

// BlockDevice is the storage a file system driver sits on top of: a flat,
// fixed-size array of BlockSize-byte sectors addressed by block number.
//
// Implementations must treat `buf` as exactly BlockSize bytes and must not
// retain it after the call returns. Block numbers are valid in [0, Size()).
type BlockDevice interface {
	// Size returns the total number of blocks on the device.
	Size() int

	// Read copies block `blockNo` from the device into `buf`.
	Read(blockNo int, buf []byte) error

	// Write copies `buf` to block `blockNo` on the device.
	Write(blockNo int, buf []byte) error
}

// DeviceStat holds cumulative operation counters for a block device. Counters
// only ever increase for the lifetime of the device.
type DeviceStat struct {
	// Reads is the number of successful single-block read operations.
	Reads uint64
	// Writes is the number of successful single-block write operations.
	Writes uint64
}

// StatReporter is implemented by devices that keep operation counters.
type StatReporter interface {
	Stat() DeviceStat
}

// FSStat is a snapshot of volume-level statistics, in the spirit of
// [syscall.Statfs_t].
type FSStat struct {
	// BlockSize is the size of a logical block on the file system, in bytes.
	BlockSize int64
	// TotalBlocks is the total number of blocks on the disk image.
	TotalBlocks uint64
	// BlocksFree is the number of unallocated blocks on the image.
	BlocksFree uint64
	// InodeBlocks is the number of blocks reserved for the inode table.
	InodeBlocks uint64
	// Files is the number of inodes currently in use.
	Files uint64
	// FilesFree is the number of remaining inode slots available for use.
	FilesFree uint64
	// Label identifies the volume, if the format stamped one.
	Label string
}
