package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowedExtension(t *testing.T) {
	allowed := []string{"png", "jpg", "jpeg", "pdf", "txt"}
	tests := []struct {
		name string
		want bool
	}{
		{"report.pdf", true},
		{"PHOTO.JPG", true},
		{"notes.txt", true},
		{"archive.tar.gz", false},
		{"script.exe", false},
		{"noext", false},
		{"", false},
		{"../../etc/passwd.txt", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AllowedExtension(tt.name, allowed))
		})
	}
}

func TestNewKey(t *testing.T) {
	key := NewKey(42, "../../My Report.PDF")
	assert.True(t, strings.HasPrefix(key, "ticket_42/"), key)
	assert.True(t, strings.HasSuffix(key, ".pdf"), key)
	assert.NotContains(t, key, "..")
	assert.NotContains(t, key, "Report")

	assert.NotEqual(t, NewKey(1, "a.png"), NewKey(1, "a.png"))
}

func TestFSStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewFSStore(t.TempDir())
	require.NoError(t, err)

	key := NewKey(7, "hello.txt")
	require.NoError(t, store.Put(ctx, key, strings.NewReader("hello"), 5, "text/plain"))

	rc, err := store.Open(ctx, key)
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "hello", string(body))

	require.NoError(t, store.Delete(ctx, key))
	_, err = store.Open(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, store.Delete(ctx, key))
}

func TestFSStore_RejectsEscapingKeys(t *testing.T) {
	ctx := context.Background()
	store, err := NewFSStore(t.TempDir())
	require.NoError(t, err)

	assert.Error(t, store.Put(ctx, "../outside.txt", strings.NewReader("x"), 1, "text/plain"))
	_, err = store.Open(ctx, "../../etc/passwd")
	assert.Error(t, err)
	assert.Error(t, store.Put(ctx, "", strings.NewReader("x"), 1, "text/plain"))
}

func TestFSStore_DoesNotOverwrite(t *testing.T) {
	ctx := context.Background()
	store, err := NewFSStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, "ticket_1/a.txt", strings.NewReader("one"), 3, "text/plain"))
	assert.Error(t, store.Put(ctx, "ticket_1/a.txt", strings.NewReader("two"), 3, "text/plain"))
}
