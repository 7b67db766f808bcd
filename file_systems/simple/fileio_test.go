package simple_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/dargueta/simplefs"
	"github.com/dargueta/simplefs/file_systems/simple"
	st "github.com/dargueta/simplefs/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreate__FirstInodeIsOne(t *testing.T) {
	driver := st.NewMountedDriver(t, 20)

	inumber, err := driver.Create()
	require.NoError(t, err)
	assert.EqualValues(t, 1, inumber)

	inumber, err = driver.Create()
	require.NoError(t, err)
	assert.EqualValues(t, 2, inumber)
}

func TestCreate__SkipsSlotZeroOfEveryBlock(t *testing.T) {
	driver := st.NewMountedDriver(t, 20)

	// Fill the first inode block: slots 1..127 give inumbers 1..127.
	var last simple.Inumber
	for i := 0; i < simple.InodesPerBlock-1; i++ {
		inumber, err := driver.Create()
		require.NoError(t, err)
		last = inumber
	}
	assert.EqualValues(t, 127, last)

	// The next inode comes from the second block, slot 1. Inumber 128
	// (slot 0 of block 2) is never handed out.
	inumber, err := driver.Create()
	require.NoError(t, err)
	assert.EqualValues(t, 129, inumber)

	_, err = driver.GetSize(128)
	assert.ErrorIs(t, err, simplefs.ErrNotFound)
}

func TestCreate__TableFull(t *testing.T) {
	// A 2-block image has one inode block: 127 usable slots and no room
	// for data.
	driver := st.NewMountedDriver(t, 2)

	for i := 0; i < 127; i++ {
		_, err := driver.Create()
		require.NoError(t, err)
	}

	inumber, err := driver.Create()
	assert.ErrorIs(t, err, simplefs.ErrNoSpaceOnDevice)
	assert.EqualValues(t, 0, inumber)
}

func TestWriteRead__SmallFile(t *testing.T) {
	driver := st.NewMountedDriver(t, 20)

	inumber, err := driver.Create()
	require.NoError(t, err)
	require.EqualValues(t, 1, inumber)

	n, err := driver.WriteAt(inumber, []byte("hello"), 0)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	size, err := driver.GetSize(inumber)
	require.NoError(t, err)
	assert.EqualValues(t, 5, size)

	buf := make([]byte, 5)
	n, err = driver.ReadAt(inumber, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, []byte("hello"), buf)
}

func TestWrite__SpillsIntoSecondDirectBlock(t *testing.T) {
	driver := st.NewMountedDriver(t, 20)
	inumber, err := driver.Create()
	require.NoError(t, err)

	n, err := driver.WriteAt(inumber, st.PatternBytes(5000), 0)
	require.NoError(t, err)
	assert.Equal(t, 5000, n)

	size, err := driver.GetSize(inumber)
	require.NoError(t, err)
	assert.EqualValues(t, 5000, size)

	raw := rawInode(t, driver, inumber)
	assert.Greater(t, raw.Direct[0], int32(2), "data blocks start after the inode table")
	assert.Greater(t, raw.Direct[1], int32(2))
	assert.Equal(t, [3]int32{}, [3]int32{raw.Direct[2], raw.Direct[3], raw.Direct[4]})
	assert.Zero(t, raw.Indirect, "5000 bytes must not need the indirect block")
}

func TestWriteRead__CrossesIntoIndirect(t *testing.T) {
	driver := st.NewMountedDriver(t, 20)
	inumber, err := driver.Create()
	require.NoError(t, err)

	payload := st.PatternBytes(6 * simplefs.BlockSize)
	n, err := driver.WriteAt(inumber, payload, 0)
	require.NoError(t, err)
	assert.Equal(t, len(payload), n)

	raw := rawInode(t, driver, inumber)
	for i, blockNo := range raw.Direct {
		assert.NotZero(t, blockNo, "direct[%d] should be allocated", i)
	}
	assert.NotZero(t, raw.Indirect)

	readBack := make([]byte, len(payload))
	n, err = driver.ReadAt(inumber, readBack, 0)
	require.NoError(t, err)
	assert.Equal(t, len(payload), n)
	assert.True(t, bytes.Equal(payload, readBack), "indirect round trip corrupted data")
}

func TestWriteRead__MaxFileRoundTrip(t *testing.T) {
	// 5 + 1024 data blocks, one indirect block, plus skeleton. 1200
	// blocks leaves enough room with 120 inode blocks.
	driver := st.NewMountedDriver(t, 1200)
	inumber, err := driver.Create()
	require.NoError(t, err)

	payload := st.PatternBytes(simple.MaxFileSize)
	n, err := driver.WriteAt(inumber, payload, 0)
	require.NoError(t, err)
	require.Equal(t, simple.MaxFileSize, n)

	readBack := make([]byte, simple.MaxFileSize)
	n, err = driver.ReadAt(inumber, readBack, 0)
	require.NoError(t, err)
	require.Equal(t, simple.MaxFileSize, n)
	assert.True(t, bytes.Equal(payload, readBack))
}

func TestWrite__PastMaxFileSizeIsClamped(t *testing.T) {
	driver := st.NewMountedDriver(t, 1200)
	inumber, err := driver.Create()
	require.NoError(t, err)

	payload := st.PatternBytes(simple.MaxFileSize + 100)
	n, err := driver.WriteAt(inumber, payload, 0)
	assert.ErrorIs(t, err, simplefs.ErrFileTooLarge)
	assert.Equal(t, simple.MaxFileSize, n)

	size, err := driver.GetSize(inumber)
	require.NoError(t, err)
	assert.EqualValues(t, simple.MaxFileSize, size)

	_, err = driver.WriteAt(inumber, []byte("x"), simple.MaxFileSize)
	assert.ErrorIs(t, err, simplefs.ErrFileTooLarge)
}

func TestWrite__HeadTailSplitAtBlockBoundary(t *testing.T) {
	driver := st.NewMountedDriver(t, 20)
	inumber, err := driver.Create()
	require.NoError(t, err)

	// Lay down two blocks of a known pattern first, then overwrite 4096
	// bytes starting one byte before the block boundary.
	base := bytes.Repeat([]byte{0xEE}, 2*simplefs.BlockSize)
	_, err = driver.WriteAt(inumber, base, 0)
	require.NoError(t, err)

	overwrite := st.PatternBytes(simplefs.BlockSize)
	n, err := driver.WriteAt(inumber, overwrite, 4095)
	require.NoError(t, err)
	assert.Equal(t, simplefs.BlockSize, n)

	readBack := make([]byte, 2*simplefs.BlockSize)
	n, err = driver.ReadAt(inumber, readBack, 0)
	require.NoError(t, err)
	require.Equal(t, len(readBack), n)

	// One byte lands at the end of block 0, 4095 bytes at the start of
	// block 1, and the untouched head and tail keep the old pattern.
	assert.Equal(t, base[:4095], readBack[:4095])
	assert.Equal(t, overwrite[0], readBack[4095])
	assert.Equal(t, overwrite[1:], readBack[4096:8191])
	assert.Equal(t, byte(0xEE), readBack[8191])
}

func TestWrite__OffsetZeroTruncates(t *testing.T) {
	driver := st.NewMountedDriver(t, 20)
	inumber, err := driver.Create()
	require.NoError(t, err)

	_, err = driver.WriteAt(inumber, st.PatternBytes(3*simplefs.BlockSize), 0)
	require.NoError(t, err)

	n, err := driver.WriteAt(inumber, []byte("tiny"), 0)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	size, err := driver.GetSize(inumber)
	require.NoError(t, err)
	assert.EqualValues(t, 4, size, "a write at offset 0 replaces the whole file")

	raw := rawInode(t, driver, inumber)
	assert.NotZero(t, raw.Direct[0])
	assert.Zero(t, raw.Direct[1], "truncation must release the old blocks")
	assert.Zero(t, raw.Indirect)
}

func TestWrite__NonZeroOffsetExtendsInPlace(t *testing.T) {
	driver := st.NewMountedDriver(t, 20)
	inumber, err := driver.Create()
	require.NoError(t, err)

	_, err = driver.WriteAt(inumber, []byte("hello "), 0)
	require.NoError(t, err)
	n, err := driver.WriteAt(inumber, []byte("world"), 6)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	buf := make([]byte, 11)
	n, err = driver.ReadAt(inumber, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 11, n)
	assert.Equal(t, []byte("hello world"), buf)
}

func TestRead__ClampsToFileSize(t *testing.T) {
	driver := st.NewMountedDriver(t, 20)
	inumber, err := driver.Create()
	require.NoError(t, err)

	_, err = driver.WriteAt(inumber, []byte("hello"), 0)
	require.NoError(t, err)

	buf := make([]byte, 100)
	n, err := driver.ReadAt(inumber, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	n, err = driver.ReadAt(inumber, buf, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []byte("lo"), buf[:2])

	n, err = driver.ReadAt(inumber, buf, 5)
	assert.ErrorIs(t, err, io.EOF)
	assert.Zero(t, n)

	n, err = driver.ReadAt(inumber, buf, 500)
	assert.ErrorIs(t, err, io.EOF)
	assert.Zero(t, n)
}

func TestRead__EmptyFile(t *testing.T) {
	driver := st.NewMountedDriver(t, 20)
	inumber, err := driver.Create()
	require.NoError(t, err)

	n, err := driver.ReadAt(inumber, make([]byte, 10), 0)
	assert.ErrorIs(t, err, io.EOF)
	assert.Zero(t, n)
}

func TestDelete__FreesBlocksForReuse(t *testing.T) {
	driver := st.NewMountedDriver(t, 20)
	inumber, err := driver.Create()
	require.NoError(t, err)

	_, err = driver.WriteAt(inumber, st.PatternBytes(6*simplefs.BlockSize), 0)
	require.NoError(t, err)
	before := rawInode(t, driver, inumber)

	require.NoError(t, driver.Delete(inumber))

	// The inumber comes straight back...
	again, err := driver.Create()
	require.NoError(t, err)
	assert.Equal(t, inumber, again)

	// ...and so do the freed block numbers.
	n, err := driver.WriteAt(again, st.PatternBytes(simplefs.BlockSize), 0)
	require.NoError(t, err)
	assert.Equal(t, simplefs.BlockSize, n)

	after := rawInode(t, driver, again)
	assert.Equal(t, before.Direct[0], after.Direct[0],
		"the allocator should reuse previously freed block numbers")
}

func TestDelete__Twice(t *testing.T) {
	driver := st.NewMountedDriver(t, 20)
	inumber, err := driver.Create()
	require.NoError(t, err)

	assert.NoError(t, driver.Delete(inumber))
	assert.ErrorIs(t, driver.Delete(inumber), simplefs.ErrNotFound)
}

func TestInumberValidation(t *testing.T) {
	driver := st.NewMountedDriver(t, 20)

	_, err := driver.GetSize(0)
	assert.ErrorIs(t, err, simplefs.ErrArgumentOutOfRange)
	_, err = driver.GetSize(-4)
	assert.ErrorIs(t, err, simplefs.ErrArgumentOutOfRange)
	_, err = driver.GetSize(257)
	assert.ErrorIs(t, err, simplefs.ErrArgumentOutOfRange)
	assert.ErrorIs(t, driver.Delete(257), simplefs.ErrArgumentOutOfRange)

	// In range but never created.
	_, err = driver.GetSize(200)
	assert.ErrorIs(t, err, simplefs.ErrNotFound)
}

func TestWrite__DiskFullPartialWrite(t *testing.T) {
	// 12 blocks: superblock + 2 inode blocks leaves 9. Writing 20 blocks
	// of data consumes one for the indirect block, so exactly 8 blocks of
	// payload fit.
	driver := st.NewMountedDriver(t, 12)
	inumber, err := driver.Create()
	require.NoError(t, err)

	payload := st.PatternBytes(20 * simplefs.BlockSize)
	n, err := driver.WriteAt(inumber, payload, 0)
	assert.ErrorIs(t, err, simplefs.ErrNoSpaceOnDevice)
	assert.Equal(t, 8*simplefs.BlockSize, n)

	size, err := driver.GetSize(inumber)
	require.NoError(t, err)
	assert.EqualValues(t, n, size, "the short write must be persisted in the size")

	// What did fit must read back intact.
	readBack := make([]byte, n)
	readN, err := driver.ReadAt(inumber, readBack, 0)
	require.NoError(t, err)
	assert.Equal(t, n, readN)
	assert.True(t, bytes.Equal(payload[:n], readBack))

	// The volume is exhausted: a second file can't get even one block.
	second, err := driver.Create()
	require.NoError(t, err)
	n, err = driver.WriteAt(second, []byte("x"), 0)
	assert.ErrorIs(t, err, simplefs.ErrNoSpaceOnDevice)
	assert.Zero(t, n)
}

func TestWriteRead__SurvivesRemount(t *testing.T) {
	device, storage := st.NewBlankDevice(t, 20)
	driver := simple.NewDriver(device)
	require.NoError(t, driver.Format())
	require.NoError(t, driver.Mount())

	inumber, err := driver.Create()
	require.NoError(t, err)
	payload := st.PatternBytes(6 * simplefs.BlockSize)
	_, err = driver.WriteAt(inumber, payload, 0)
	require.NoError(t, err)

	fresh := st.Remount(t, storage)
	readBack := make([]byte, len(payload))
	n, err := fresh.ReadAt(inumber, readBack, 0)
	require.NoError(t, err)
	assert.Equal(t, len(payload), n)
	assert.True(t, bytes.Equal(payload, readBack))
}

// rawInode fetches an inode's on-disk form, failing the test on error.
func rawInode(t *testing.T, driver *simple.Driver, inumber simple.Inumber) simple.RawInode {
	raw, err := driver.Inode(inumber)
	require.NoError(t, err)
	return raw
}
