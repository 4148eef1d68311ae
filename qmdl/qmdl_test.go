package qmdl

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BeigeBox/rayhunter/diag"
	"github.com/BeigeBox/rayhunter/hdlc"
)

func encodeItem(t *testing.T, code diag.LogCode, ts time.Time, payload []byte) []byte {
	t.Helper()
	item := diag.LogItem{LogCode: code, Timestamp: ts, Payload: payload}
	return hdlc.Encode(diag.EncodeLogItem(item))
}

func TestWriterAppendAndReaderStream(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "capture.qmdl")

	w, err := Create(path)
	require.NoError(t, err)

	ts1 := time.Unix(100, 0).UTC()
	ts2 := time.Unix(101, 0).UTC()
	require.NoError(t, w.Append(encodeItem(t, diag.LogCodeLTERRCOTA, ts1, []byte("a"))))
	require.NoError(t, w.Append(encodeItem(t, diag.LogCodeLTERRCOTA, ts2, []byte("b"))))
	require.NoError(t, w.Append(encodeItem(t, diag.LogCodeLTENASEMMPlain, ts2, []byte("c"))))
	require.NoError(t, w.Close())

	r, err := Open(path, nil)
	require.NoError(t, err)
	defer r.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	containers, errc := r.Stream(ctx)

	var got []diag.MessagesContainer
	for c := range containers {
		got = append(got, c)
	}
	require.NoError(t, <-errc)

	require.Len(t, got, 2)
	assert.Equal(t, diag.LogCodeLTERRCOTA, got[0].LogCode)
	assert.Len(t, got[0].Items, 2)
	assert.Equal(t, diag.LogCodeLTENASEMMPlain, got[1].LogCode)
	assert.Len(t, got[1].Items, 1)
}

func TestReaderKnownSizeCutoff(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "capture.qmdl")

	w, err := Create(path)
	require.NoError(t, err)
	ts := time.Unix(1, 0).UTC()
	first := encodeItem(t, diag.LogCodeLTERRCOTA, ts, []byte("a"))
	require.NoError(t, w.Append(first))
	cutoff := w.Size()
	require.NoError(t, w.Append(encodeItem(t, diag.LogCodeLTENASEMMPlain, ts, []byte("b"))))
	require.NoError(t, w.Close())

	r, err := Open(path, &cutoff)
	require.NoError(t, err)
	defer r.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	containers, errc := r.Stream(ctx)

	var got []diag.MessagesContainer
	for c := range containers {
		got = append(got, c)
	}
	require.NoError(t, <-errc)

	require.Len(t, got, 1)
	assert.Equal(t, diag.LogCodeLTERRCOTA, got[0].LogCode)
}

func TestReaderResyncAfterCorruption(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "capture.qmdl")

	w, err := Create(path)
	require.NoError(t, err)
	ts := time.Unix(1, 0).UTC()
	require.NoError(t, w.Append(encodeItem(t, diag.LogCodeLTERRCOTA, ts, []byte("before"))))

	// Corrupt frame: well-framed (terminated) but bad CRC.
	require.NoError(t, w.Append([]byte{0x01, 0x02, 0x03, 0x04, 0x7e}))

	require.NoError(t, w.Append(encodeItem(t, diag.LogCodeLTERRCOTA, ts, []byte("after"))))
	require.NoError(t, w.Close())

	r, err := Open(path, nil)
	require.NoError(t, err)
	defer r.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	containers, errc := r.Stream(ctx)
	var got []diag.MessagesContainer
	for c := range containers {
		got = append(got, c)
	}
	require.NoError(t, <-errc)

	require.Len(t, got, 1)
	assert.Len(t, got[0].Items, 2)
	assert.Equal(t, 1, r.CorruptFrameCount())
}

func TestManifestLifecycle(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.json")

	m := NewManifest(path)
	start := time.Unix(1000, 0).UTC()
	_, err := m.Create("2024-01-01T00-00-00", start)
	require.NoError(t, err)

	_, err = m.Create("another", start)
	assert.Error(t, err, "cannot open a second entry concurrently")

	require.NoError(t, m.UpdateCurrent(start.Add(time.Second), 100))
	require.NoError(t, m.UpdateCurrent(start.Add(2*time.Second), 200))

	err = m.UpdateCurrent(start.Add(3*time.Second), 50)
	assert.Error(t, err, "size must be monotonic")

	entry, ok := m.Current()
	require.True(t, ok)
	assert.Equal(t, uint64(200), entry.QmdlSizeBytes)

	require.NoError(t, m.Finalize(StopReasonUserStop))
	_, ok = m.Current()
	assert.False(t, ok)

	require.NoError(t, m.Flush())

	reloaded, err := LoadManifest(path)
	require.NoError(t, err)
	require.Len(t, reloaded.Entries, 1)
	assert.Equal(t, StopReasonUserStop, *reloaded.Entries[0].StopReason)
}
