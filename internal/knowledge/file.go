package knowledge

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/vittmoney/vitt/internal/models"
	"github.com/vittmoney/vitt/internal/vector"
)

const (
	fileName  = "knowledge.bin"
	fileMagic = "VKB1"
	// maxFactLen bounds a single fact when reading, to reject corrupt files early.
	maxFactLen = 1 << 20
	// maxDimensions bounds the vector width read from a file header.
	maxDimensions = 1 << 16
	headerSize    = len(fileMagic) + 8 + 4 + 4
)

// FileStore keeps one binary file per user under root/<userID>/.
//
// Format (little endian): magic "VKB1", built_at unix nanos (int64), dimension (uint32),
// n (uint32), then per fact: length (uint32), fact bytes, vector (dimension*4 bytes).
type FileStore struct {
	root string
}

// NewFileStore creates the root directory if needed.
func NewFileStore(root string) (*FileStore, error) {
	if root == "" {
		return nil, fmt.Errorf("knowledge directory is required")
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create knowledge directory: %w", err)
	}
	return &FileStore{root: root}, nil
}

// Root returns the directory holding all knowledge bases.
func (s *FileStore) Root() string {
	return s.root
}

func (s *FileStore) path(userID string) string {
	return filepath.Join(s.root, userID, fileName)
}

// Save writes kb to a temporary file in the user's directory and renames it over the previous file.
func (s *FileStore) Save(ctx context.Context, kb *models.KnowledgeBase) error {
	if err := kb.Validate(); err != nil {
		return fmt.Errorf("invalid knowledge base: %w", err)
	}
	if err := checkUserID(kb.UserID); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := filepath.Dir(s.path(kb.UserID))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create user dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, fileName+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := encode(tmp, kb); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync knowledge file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close knowledge file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(kb.UserID)); err != nil {
		return fmt.Errorf("replace knowledge file: %w", err)
	}
	return nil
}

// Load reads the knowledge base for userID, or returns ErrNotFound.
func (s *FileStore) Load(ctx context.Context, userID string) (*models.KnowledgeBase, error) {
	if err := checkUserID(userID); err != nil {
		return nil, err
	}
	f, err := os.Open(s.path(userID))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open knowledge file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat knowledge file: %w", err)
	}
	kb, err := decode(bufio.NewReader(f), info.Size())
	if err != nil {
		return nil, fmt.Errorf("read knowledge base for %s: %w", userID, err)
	}
	kb.UserID = userID
	return kb, nil
}

// Exists reports whether a knowledge base file exists for userID.
func (s *FileStore) Exists(ctx context.Context, userID string) (bool, error) {
	if err := checkUserID(userID); err != nil {
		return false, err
	}
	_, err := os.Stat(s.path(userID))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}

// Delete removes the user's knowledge base directory. Deleting a missing one is not an error.
func (s *FileStore) Delete(ctx context.Context, userID string) error {
	if err := checkUserID(userID); err != nil {
		return err
	}
	if err := os.RemoveAll(filepath.Join(s.root, userID)); err != nil {
		return fmt.Errorf("delete knowledge base: %w", err)
	}
	return nil
}

// Close is a no-op for FileStore.
func (s *FileStore) Close() error {
	return nil
}

func encode(w io.Writer, kb *models.KnowledgeBase) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(fileMagic); err != nil {
		return fmt.Errorf("write magic: %w", err)
	}
	header := []any{kb.BuiltAt.UnixNano(), uint32(kb.Dimensions()), uint32(kb.Len())}
	for _, v := range header {
		if err := binary.Write(bw, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	for i, fact := range kb.Facts {
		if err := binary.Write(bw, binary.LittleEndian, uint32(len(fact))); err != nil {
			return fmt.Errorf("write fact len: %w", err)
		}
		if _, err := bw.WriteString(fact); err != nil {
			return fmt.Errorf("write fact: %w", err)
		}
		if _, err := bw.Write(vector.EncodeFloat32s(kb.Embeddings[i])); err != nil {
			return fmt.Errorf("write vector: %w", err)
		}
	}
	return bw.Flush()
}

// decode reads a knowledge base of size bytes. Header counts are checked against size before
// anything is allocated from them.
func decode(r io.Reader, size int64) (*models.KnowledgeBase, error) {
	magic := make([]byte, len(fileMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, fmt.Errorf("read magic: %w", err)
	}
	if string(magic) != fileMagic {
		return nil, fmt.Errorf("unexpected file header %q", magic)
	}
	var builtAt int64
	var dim, n uint32
	for _, v := range []any{&builtAt, &dim, &n} {
		if err := binary.Read(r, binary.LittleEndian, v); err != nil {
			return nil, fmt.Errorf("read header: %w", err)
		}
	}

	if dim > maxDimensions {
		return nil, fmt.Errorf("dimension %d exceeds %d", dim, maxDimensions)
	}
	if n > 0 && dim == 0 {
		return nil, fmt.Errorf("%d facts with zero dimension", n)
	}
	// Every fact takes at least its length prefix and its vector.
	if minSize := int64(headerSize) + int64(n)*(4+int64(dim)*4); minSize > size {
		return nil, fmt.Errorf("header claims %d facts of dimension %d but file has %d bytes", n, dim, size)
	}

	kb := &models.KnowledgeBase{
		Facts:      make([]string, 0, n),
		Embeddings: make([][]float32, 0, n),
		BuiltAt:    time.Unix(0, builtAt).UTC(),
	}
	buf := make([]byte, int(dim)*4)
	for i := uint32(0); i < n; i++ {
		var factLen uint32
		if err := binary.Read(r, binary.LittleEndian, &factLen); err != nil {
			return nil, fmt.Errorf("read fact len: %w", err)
		}
		if factLen > maxFactLen || int64(factLen) > size {
			return nil, fmt.Errorf("fact %d too long: %d bytes", i, factLen)
		}
		fact := make([]byte, factLen)
		if _, err := io.ReadFull(r, fact); err != nil {
			return nil, fmt.Errorf("read fact: %w", err)
		}
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("read vector: %w", err)
		}
		vec, err := vector.DecodeFloat32s(buf)
		if err != nil {
			return nil, err
		}
		kb.Facts = append(kb.Facts, string(fact))
		kb.Embeddings = append(kb.Embeddings, vec)
	}
	return kb, nil
}
