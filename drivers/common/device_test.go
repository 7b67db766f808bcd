package common_test

import (
	"testing"

	"github.com/dargueta/simplefs"
	"github.com/dargueta/simplefs/drivers/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"
)

func TestSectorDevice__ReadWrite__RoundTrip(t *testing.T) {
	device := common.NewMemoryDevice(4)
	require.Equal(t, 4, device.Size())

	payload := make([]byte, simplefs.BlockSize)
	for i := range payload {
		payload[i] = byte(i % 251)
	}

	require.NoError(t, device.Write(2, payload))

	readBack := make([]byte, simplefs.BlockSize)
	require.NoError(t, device.Read(2, readBack))
	assert.Equal(t, payload, readBack)

	// Neighbouring blocks stay zeroed.
	require.NoError(t, device.Read(1, readBack))
	assert.Equal(t, make([]byte, simplefs.BlockSize), readBack)
}

func TestSectorDevice__Read__OutOfRange(t *testing.T) {
	device := common.NewMemoryDevice(4)
	buf := make([]byte, simplefs.BlockSize)

	assert.NoError(t, device.Read(0, buf))
	assert.NoError(t, device.Read(3, buf))

	err := device.Read(4, buf)
	assert.ErrorIs(t, err, simplefs.ErrArgumentOutOfRange)
	err = device.Read(-1, buf)
	assert.ErrorIs(t, err, simplefs.ErrArgumentOutOfRange)
}

func TestSectorDevice__ReadWrite__WrongBufferSize(t *testing.T) {
	device := common.NewMemoryDevice(4)

	err := device.Read(0, make([]byte, simplefs.BlockSize-1))
	assert.ErrorIs(t, err, simplefs.ErrInvalidArgument)

	err = device.Write(0, make([]byte, simplefs.BlockSize+1))
	assert.ErrorIs(t, err, simplefs.ErrInvalidArgument)
}

func TestSectorDevice__Stat__CountsOperations(t *testing.T) {
	device := common.NewMemoryDevice(4)
	buf := make([]byte, simplefs.BlockSize)

	require.NoError(t, device.Read(0, buf))
	require.NoError(t, device.Read(1, buf))
	require.NoError(t, device.Write(2, buf))

	stat := device.Stat()
	assert.EqualValues(t, 2, stat.Reads)
	assert.EqualValues(t, 1, stat.Writes)

	// Failed operations don't count.
	device.Read(100, buf)
	device.Write(100, buf)
	stat = device.Stat()
	assert.EqualValues(t, 2, stat.Reads)
	assert.EqualValues(t, 1, stat.Writes)
}

func TestNewDeviceFromStream__RoundsDownToWholeBlocks(t *testing.T) {
	storage := make([]byte, 3*simplefs.BlockSize+100)
	stream := bytesextra.NewReadWriteSeeker(storage)

	device, err := common.NewDeviceFromStream(stream)
	require.NoError(t, err)
	assert.Equal(t, 3, device.Size())
}

func TestNewDeviceFromBytes__RejectsRaggedImages(t *testing.T) {
	_, err := common.NewDeviceFromBytes(make([]byte, simplefs.BlockSize+1))
	assert.ErrorIs(t, err, simplefs.ErrInvalidArgument)
}

func TestSectorDevice__Write__ModifiesBackingSlice(t *testing.T) {
	storage := make([]byte, 2*simplefs.BlockSize)
	device, err := common.NewDeviceFromBytes(storage)
	require.NoError(t, err)

	payload := make([]byte, simplefs.BlockSize)
	payload[0] = 0xAB
	payload[simplefs.BlockSize-1] = 0xCD
	require.NoError(t, device.Write(1, payload))

	assert.EqualValues(t, 0xAB, storage[simplefs.BlockSize])
	assert.EqualValues(t, 0xCD, storage[2*simplefs.BlockSize-1])
}
