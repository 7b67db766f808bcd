// Package simple implements an inode-based file system over a flat block
// device, with a fixed 10% inode region and a five-direct-plus-one-indirect
// pointer scheme per file.
//
// The on-disk layout is, in order: the superblock in block 0; the inode
// table in blocks 1 through ninodeblocks; everything after that is data and
// indirect blocks. There is no free list on disk. The free-block bitmap is
// rebuilt from the inode pointers every time the image is mounted.
package simple
