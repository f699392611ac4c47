package persistence

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecksumWriterReaderAgree(t *testing.T) {
	payload := []byte("some snapshot payload bytes")

	var buf bytes.Buffer
	cw := NewChecksumWriter(&buf)
	_, err := cw.Write(payload)
	require.NoError(t, err)

	assert.Equal(t, CalculateChecksum(payload), cw.Sum())

	cr := NewChecksumReader(&buf)
	_, err = io.Copy(io.Discard, cr)
	require.NoError(t, err)

	require.NoError(t, cr.Verify(cw.Sum()))
}

func TestChecksumReader_VerifyMismatch(t *testing.T) {
	cr := NewChecksumReader(bytes.NewReader([]byte("abc")))
	_, err := io.Copy(io.Discard, cr)
	require.NoError(t, err)

	err = cr.Verify(0xFFFFFFFF)
	require.Error(t, err)
	assert.True(t, IsChecksumMismatch(err))

	var mismatch *ChecksumMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, uint32(0xFFFFFFFF), mismatch.Expected)
}
