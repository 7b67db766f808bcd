package simple

import (
	"fmt"
	"io"
)

// File is a file-like view of one inode, emulating the subset of [os.File]
// the tools need: sequential reads and writes with a seekable position.
// Nothing is cached, so there is no Sync and Close is only a formality.
type File struct {
	driver   *Driver
	inumber  Inumber
	position int64
}

// Open returns a File positioned at byte 0. The inode must be valid.
func (driver *Driver) Open(inumber Inumber) (*File, error) {
	// Reject dead inumbers up front so every later short read/write is a
	// positioning issue, not a vanished file.
	_, err := driver.GetSize(inumber)
	if err != nil {
		return nil, err
	}
	return &File{driver: driver, inumber: inumber}, nil
}

// Inumber returns the inode this file reads from and writes to.
func (file *File) Inumber() Inumber {
	return file.inumber
}

// Size returns the file's current size in bytes.
func (file *File) Size() (int64, error) {
	return file.driver.GetSize(file.inumber)
}

// Tell returns the current stream position.
func (file *File) Tell() int64 {
	return file.position
}

// Read implements [io.Reader]. A read that comes back short of the buffer
// reached end-of-data and reports io.EOF alongside the bytes it got.
func (file *File) Read(buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}

	n, err := file.driver.ReadAt(file.inumber, buf, file.position)
	file.position += int64(n)
	if err == nil && n < len(buf) {
		err = io.EOF
	}
	return n, err
}

// Write implements [io.Writer].
func (file *File) Write(data []byte) (int, error) {
	n, err := file.driver.WriteAt(file.inumber, data, file.position)
	file.position += int64(n)
	return n, err
}

// Seek implements [io.Seeker]. Seeking past the end of the file is allowed;
// reads there return EOF, and writes there allocate as usual.
func (file *File) Seek(offset int64, whence int) (int64, error) {
	var absoluteOffset int64

	switch whence {
	case io.SeekStart:
		absoluteOffset = offset
	case io.SeekCurrent:
		absoluteOffset = file.position + offset
	case io.SeekEnd:
		size, err := file.driver.GetSize(file.inumber)
		if err != nil {
			return file.position, err
		}
		absoluteOffset = size + offset
	default:
		return file.position, fmt.Errorf("invalid seek origin: %d", whence)
	}

	if absoluteOffset < 0 {
		return file.position, fmt.Errorf(
			"result of Seek(offset=%d, whence=%d) is negative: %d",
			offset,
			whence,
			absoluteOffset,
		)
	}

	file.position = absoluteOffset
	return absoluteOffset, nil
}

// Close implements [io.Closer]. All writes have already gone through to the
// device, so this never fails.
func (file *File) Close() error {
	return nil
}
