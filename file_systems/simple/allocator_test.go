package simple

import (
	"testing"

	"github.com/dargueta/simplefs/drivers/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMountedDriver(t *testing.T, totalBlocks int) *Driver {
	driver := NewDriver(common.NewMemoryDevice(totalBlocks))
	require.NoError(t, driver.Format())
	require.NoError(t, driver.Mount())
	return driver
}

func TestAllocator__SkeletonBlocksAreAlwaysUsed(t *testing.T) {
	driver := newMountedDriver(t, 20)

	for blockNo := 0; blockNo <= 2; blockNo++ {
		assert.True(t, driver.freeMap.Get(blockNo),
			"block %d belongs to the fs skeleton and must be marked used", blockNo)
	}
	for blockNo := 3; blockNo < 20; blockNo++ {
		assert.False(t, driver.freeMap.Get(blockNo),
			"data block %d should be free on a fresh image", blockNo)
	}
}

func TestAllocator__AllocateIsMonotoneAndDistinct(t *testing.T) {
	driver := newMountedDriver(t, 20)

	seen := map[int32]bool{}
	for i := 0; i < 17; i++ {
		blockNo := driver.allocateBlock()
		require.NotZero(t, blockNo, "allocation %d should succeed on a 20-block image", i)
		assert.False(t, seen[blockNo], "block %d handed out twice", blockNo)
		assert.Greater(t, blockNo, int32(2), "allocations must come from the data region")
		seen[blockNo] = true
	}

	// 17 data blocks on a 20-block image; the 18th allocation fails.
	assert.Zero(t, driver.allocateBlock())
}

func TestAllocator__ReleaseMakesBlocksReusable(t *testing.T) {
	driver := newMountedDriver(t, 20)

	first := driver.allocateBlock()
	require.NotZero(t, first)
	second := driver.allocateBlock()
	require.NotZero(t, second)

	driver.releaseBlock(first)
	assert.Equal(t, first, driver.allocateBlock(),
		"the scan is linear, so the lowest freed block comes back first")
}

func TestAllocator__ReleaseIgnoresSkeletonAndOutOfRange(t *testing.T) {
	driver := newMountedDriver(t, 20)

	driver.releaseBlock(0)
	driver.releaseBlock(1)
	driver.releaseBlock(2)
	driver.releaseBlock(-5)
	driver.releaseBlock(20)
	driver.releaseBlock(100)

	assert.True(t, driver.freeMap.Get(0))
	assert.True(t, driver.freeMap.Get(1))
	assert.True(t, driver.freeMap.Get(2))
	assert.EqualValues(t, 17, driver.countFreeBlocks())
}

func TestAllocator__RebuildMatchesLiveBitmap(t *testing.T) {
	device := common.NewMemoryDevice(40)
	driver := NewDriver(device)
	require.NoError(t, driver.Format())
	require.NoError(t, driver.Mount())

	// Churn the file system: two files, one grown into the indirect
	// region, one deleted again.
	first, err := driver.Create()
	require.NoError(t, err)
	second, err := driver.Create()
	require.NoError(t, err)

	_, err = driver.WriteAt(first, make([]byte, 7*4096), 0)
	require.NoError(t, err)
	_, err = driver.WriteAt(second, make([]byte, 3*4096), 0)
	require.NoError(t, err)
	require.NoError(t, driver.Delete(second))

	// A fresh driver mounting the same image must reconstruct the exact
	// same bitmap from the inode pointers alone.
	rebuilt := NewDriver(device)
	require.NoError(t, rebuilt.Mount())

	for blockNo := 0; blockNo < 40; blockNo++ {
		assert.Equal(
			t,
			driver.freeMap.Get(blockNo),
			rebuilt.freeMap.Get(blockNo),
			"bitmap mismatch at block %d after remount",
			blockNo,
		)
	}
}
