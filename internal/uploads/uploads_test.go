package uploads

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "uploads"))
	require.NoError(t, err)
	return s
}

func TestNew_CreatesRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "a", "b")
	s, err := New(root)
	require.NoError(t, err)
	assert.Equal(t, root, s.Root())

	info, err := os.Stat(root)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestAllowed(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"shot.png", true},
		{"SHOT.PNG", true},
		{"report.pdf", true},
		{"photo.jpeg", true},
		{"anim.gif", true},
		{"script.sh", false},
		{"malware.exe", false},
		{"noext", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Allowed(tt.name), "Allowed(%q)", tt.name)
	}
}

func TestSaveAll_StoredNameFormat(t *testing.T) {
	s := newTestStore(t)

	saved, err := s.SaveAll([]File{{Name: "my shot.png", Content: strings.NewReader("data")}})
	require.NoError(t, err)
	require.Len(t, saved, 1)

	// ULID token, underscore, sanitized original name
	assert.True(t, strings.HasSuffix(saved[0], "_my_shot.png"), "got %q", saved[0])
	assert.Len(t, saved[0], 26+len("_my_shot.png"))

	content, err := os.ReadFile(filepath.Join(s.Root(), saved[0]))
	require.NoError(t, err)
	assert.Equal(t, "data", string(content))
}

func TestSaveAll_SkipsDisallowed(t *testing.T) {
	s := newTestStore(t)

	saved, err := s.SaveAll([]File{
		{Name: "ok.png", Content: strings.NewReader("a")},
		{Name: "bad.exe", Content: strings.NewReader("b")},
		{Name: "", Content: strings.NewReader("c")},
		{Name: "also.pdf", Content: strings.NewReader("d")},
	})
	require.NoError(t, err)
	require.Len(t, saved, 2)
	assert.True(t, strings.HasSuffix(saved[0], "_ok.png"))
	assert.True(t, strings.HasSuffix(saved[1], "_also.pdf"))

	entries, err := os.ReadDir(s.Root())
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestSaveAll_CapsBatch(t *testing.T) {
	s := newTestStore(t)

	var files []File
	for i := 0; i < MaxPerBatch+2; i++ {
		files = append(files, File{Name: "f.png", Content: strings.NewReader("x")})
	}
	saved, err := s.SaveAll(files)
	require.NoError(t, err)
	assert.Len(t, saved, MaxPerBatch)
}

func TestSaveAll_SanitizesTraversal(t *testing.T) {
	s := newTestStore(t)

	saved, err := s.SaveAll([]File{
		{Name: "../../etc/passwd.png", Content: strings.NewReader("x")},
		{Name: `..\..\win\evil.pdf`, Content: strings.NewReader("y")},
	})
	require.NoError(t, err)
	require.Len(t, saved, 2)
	for _, name := range saved {
		assert.NotContains(t, name, "/")
		assert.NotContains(t, name, `\`)
		_, err := os.Stat(filepath.Join(s.Root(), name))
		assert.NoError(t, err, "file should land inside the root")
	}
	assert.True(t, strings.HasSuffix(saved[0], "_passwd.png"))
	assert.True(t, strings.HasSuffix(saved[1], "_evil.pdf"))
}

func TestRemove_MissingIsSuccess(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.Remove("nothere.png"))
	assert.NoError(t, s.Remove("../escape.png"))
}

func TestRemove_DeletesFile(t *testing.T) {
	s := newTestStore(t)
	saved, err := s.SaveAll([]File{{Name: "gone.png", Content: strings.NewReader("x")}})
	require.NoError(t, err)
	require.Len(t, saved, 1)

	require.NoError(t, s.Remove(saved[0]))
	_, err = os.Stat(filepath.Join(s.Root(), saved[0]))
	assert.True(t, os.IsNotExist(err))
}

func TestOpen(t *testing.T) {
	s := newTestStore(t)
	saved, err := s.SaveAll([]File{{Name: "read.png", Content: strings.NewReader("payload")}})
	require.NoError(t, err)
	require.Len(t, saved, 1)

	f, err := s.Open(saved[0])
	require.NoError(t, err)
	defer f.Close()

	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestOpen_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Open("missing.png")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Open("../uploads")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Open("..")
	assert.ErrorIs(t, err, ErrNotFound)
}
