package disk

import (
	"errors"
	"io"
	"os"
	"path"
	"testing"

	"github.com/jobala/rtstore/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannel(t *testing.T) {
	t.Run("test reading and writing a page", func(t *testing.T) {
		ch := CreateChannel(t)

		buf := make([]byte, 49)
		copy(buf, []byte("hello world"))

		err := ch.WriteAt(buf, 49)
		assert.NoError(t, err)

		res := make([]byte, 49)
		err = ch.ReadAt(res, 49)
		assert.NoError(t, err)

		assert.Equal(t, buf, res)
		assert.Equal(t, 1, ch.Writes())
	})

	t.Run("short read is an io error", func(t *testing.T) {
		ch := CreateChannel(t)
		require.NoError(t, ch.WriteAt(make([]byte, 10), 0))

		err := ch.ReadAt(make([]byte, 49), 0)
		assert.ErrorIs(t, err, util.ErrIo)
		assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
	})

	t.Run("operations after close fail", func(t *testing.T) {
		ch := CreateChannel(t)
		require.NoError(t, ch.Close())
		require.NoError(t, ch.Close())

		err := ch.WriteAt([]byte{1}, 0)
		assert.ErrorIs(t, err, util.ErrIo)

		_, err = ch.Size()
		assert.ErrorIs(t, err, util.ErrIo)
	})

	t.Run("data survives reopening", func(t *testing.T) {
		name := path.Join(t.TempDir(), "reopen.db")

		ch, err := OpenChannel(name, nil)
		require.NoError(t, err)
		require.NoError(t, ch.WriteAt([]byte("page"), 0))
		require.NoError(t, ch.Close())

		ch, err = OpenChannel(name, nil)
		require.NoError(t, err)
		t.Cleanup(func() { _ = ch.Close() })

		res := make([]byte, 4)
		assert.NoError(t, ch.ReadAt(res, 0))
		assert.Equal(t, "page", string(res))

		info, err := os.Stat(name)
		assert.NoError(t, err)
		assert.Equal(t, int64(4), info.Size())
	})
}
