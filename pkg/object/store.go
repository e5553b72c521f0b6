package object

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/zlib"
	"github.com/patrickmn/go-cache"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// DefaultCacheTTL is how long a decoded object stays in the read cache.
const DefaultCacheTTL = 5 * time.Minute

// Store is a content-addressed object store with a 2-character fan-out
// directory layout: objects/ab/cdef0123...
//
// Objects are zlib-compressed envelopes "kind len\0content". They are
// immutable, which is what makes the in-process read cache safe.
type Store struct {
	fs     afero.Fs
	cache  *cache.Cache
	logger *zap.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger attaches a logger for write/read diagnostics.
func WithLogger(l *zap.Logger) StoreOption {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithCacheTTL sets the read cache expiry. Zero or negative disables caching.
func WithCacheTTL(ttl time.Duration) StoreOption {
	return func(s *Store) {
		if ttl <= 0 {
			s.cache = nil
			return
		}
		s.cache = cache.New(ttl, 2*ttl)
	}
}

// NewStore creates a Store on fs, which must be rooted at the repository
// directory. The objects/ subdirectory is created lazily on first write.
func NewStore(fs afero.Fs, opts ...StoreOption) *Store {
	s := &Store{
		fs:     fs,
		cache:  cache.New(DefaultCacheTTL, 2*DefaultCacheTTL),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewOsStore is NewStore over the operating system directory root.
func NewOsStore(root string, opts ...StoreOption) *Store {
	return NewStore(afero.NewBasePathFs(afero.NewOsFs(), root), opts...)
}

type cachedObject struct {
	kind Kind
	data []byte
}

// objectPath returns the store-relative path for a given hash.
func objectPath(h Hash) string {
	return path.Join("objects", string(h[:2]), string(h[2:]))
}

// Has reports whether the store contains an object with the given hash.
func (s *Store) Has(h Hash) bool {
	if !IsHash(string(h)) {
		return false
	}
	_, err := s.fs.Stat(objectPath(h))
	return err == nil
}

// Write stores an object and returns its content hash. Writing an object
// that already exists is a no-op. New objects are written to a temp file in
// the fan-out directory and renamed into place.
func (s *Store) Write(kind Kind, data []byte) (Hash, error) {
	if _, err := ParseKind(kind.String()); err != nil {
		return "", fmt.Errorf("object write: %w", err)
	}
	h := HashObject(kind, data)

	// Fast path: already exists.
	if s.Has(h) {
		return h, nil
	}

	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(header(kind, len(data))); err != nil {
		return "", fmt.Errorf("object write %s: compress: %w", h, err)
	}
	if _, err := zw.Write(data); err != nil {
		return "", fmt.Errorf("object write %s: compress: %w", h, err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("object write %s: compress: %w", h, err)
	}

	dir := path.Join("objects", string(h[:2]))
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("object write mkdir: %w", err)
	}

	tmp, err := afero.TempFile(s.fs, dir, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("object write tmpfile: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		s.fs.Remove(tmpName)
		return "", fmt.Errorf("object write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		s.fs.Remove(tmpName)
		return "", fmt.Errorf("object write close: %w", err)
	}
	if err := s.fs.Rename(tmpName, objectPath(h)); err != nil {
		s.fs.Remove(tmpName)
		return "", fmt.Errorf("object write rename: %w", err)
	}

	s.logger.Debug("object written",
		zap.Stringer("kind", kind),
		zap.String("hash", string(h)),
		zap.Int("size", len(data)),
	)
	return h, nil
}

// Read retrieves an object by its full hash, returning its kind and content.
func (s *Store) Read(h Hash) (Kind, []byte, error) {
	if !IsHash(string(h)) {
		return 0, nil, fmt.Errorf("object read %q: %w", string(h), ErrObjectNotFound)
	}
	if s.cache != nil {
		if v, ok := s.cache.Get(string(h)); ok {
			co := v.(cachedObject)
			return co.kind, bytes.Clone(co.data), nil
		}
	}

	raw, err := afero.ReadFile(s.fs, objectPath(h))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil, fmt.Errorf("object read %s: %w", h, ErrObjectNotFound)
		}
		return 0, nil, fmt.Errorf("object read %s: %w", h, err)
	}

	kind, content, err := decodeEnvelope(raw)
	if err != nil {
		return 0, nil, fmt.Errorf("object read %s: %w", h, err)
	}

	if s.cache != nil {
		s.cache.SetDefault(string(h), cachedObject{kind: kind, data: bytes.Clone(content)})
	}
	return kind, content, nil
}

// decodeEnvelope inflates a stored object and validates "kind len\0content".
func decodeEnvelope(raw []byte) (Kind, []byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(raw))
	if err != nil {
		return 0, nil, fmt.Errorf("%w: inflate: %v", ErrCorruptObject, err)
	}
	defer zr.Close()
	data, err := io.ReadAll(zr)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: inflate: %v", ErrCorruptObject, err)
	}

	nulIdx := bytes.IndexByte(data, 0)
	if nulIdx < 0 {
		return 0, nil, fmt.Errorf("%w: invalid format (no NUL)", ErrCorruptObject)
	}
	hdr := string(data[:nulIdx])
	content := data[nulIdx+1:]

	kindText, lenText, ok := strings.Cut(hdr, " ")
	if !ok {
		return 0, nil, fmt.Errorf("%w: invalid header %q", ErrCorruptObject, hdr)
	}
	kind, err := ParseKind(kindText)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrCorruptObject, err)
	}
	length, err := strconv.Atoi(lenText)
	if err != nil || length < 0 {
		return 0, nil, fmt.Errorf("%w: invalid length %q", ErrCorruptObject, lenText)
	}
	if len(content) != length {
		return 0, nil, fmt.Errorf("%w: length mismatch (header=%d, actual=%d)", ErrCorruptObject, length, len(content))
	}
	return kind, content, nil
}

// ResolvePrefix expands an abbreviated hash of 4 to 40 hex characters to the
// full hash of the single stored object it matches.
func (s *Store) ResolvePrefix(prefix string) (Hash, error) {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if len(prefix) < MinPrefix || len(prefix) > HexSize || !isHex(prefix) {
		return "", fmt.Errorf("resolve %q: not a valid object name: %w", prefix, ErrObjectNotFound)
	}
	if len(prefix) == HexSize {
		if !s.Has(Hash(prefix)) {
			return "", fmt.Errorf("resolve %s: %w", prefix, ErrObjectNotFound)
		}
		return Hash(prefix), nil
	}

	dir, rest := prefix[:2], prefix[2:]
	infos, err := afero.ReadDir(s.fs, path.Join("objects", dir))
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("resolve %s: %w", prefix, ErrObjectNotFound)
		}
		return "", fmt.Errorf("resolve %s: %w", prefix, err)
	}

	var matches []string
	for _, fi := range infos {
		name := fi.Name()
		if fi.IsDir() || len(name) != HexSize-2 || !isHex(name) {
			continue
		}
		if strings.HasPrefix(name, rest) {
			matches = append(matches, dir+name)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("resolve %s: %w", prefix, ErrObjectNotFound)
	case 1:
		return Hash(matches[0]), nil
	default:
		sort.Strings(matches)
		return "", fmt.Errorf("resolve %s: %w (candidates: %s)", prefix, ErrAmbiguousObject, strings.Join(matches, ", "))
	}
}

// ---------------------------------------------------------------------------
// Typed convenience methods
// ---------------------------------------------------------------------------

// WriteObject serializes and stores any typed object.
func (s *Store) WriteObject(o Object) (Hash, error) {
	kind, data, err := Marshal(o)
	if err != nil {
		return "", err
	}
	return s.Write(kind, data)
}

// ReadObject reads an object and decodes it into its typed variant.
func (s *Store) ReadObject(h Hash) (Object, error) {
	kind, data, err := s.Read(h)
	if err != nil {
		return nil, err
	}
	o, err := Parse(kind, data)
	if err != nil {
		return nil, fmt.Errorf("object %s: %w", h, err)
	}
	return o, nil
}

func (s *Store) readKind(h Hash, want Kind) ([]byte, error) {
	kind, data, err := s.Read(h)
	if err != nil {
		return nil, err
	}
	if kind != want {
		return nil, fmt.Errorf("object %s: type mismatch: got %s, want %s", h, kind, want)
	}
	return data, nil
}

// WriteBlob stores a Blob.
func (s *Store) WriteBlob(b *Blob) (Hash, error) {
	return s.Write(KindBlob, MarshalBlob(b))
}

// ReadBlob reads and deserializes a Blob.
func (s *Store) ReadBlob(h Hash) (*Blob, error) {
	data, err := s.readKind(h, KindBlob)
	if err != nil {
		return nil, err
	}
	return UnmarshalBlob(data)
}

// WriteTree serializes and stores a Tree.
func (s *Store) WriteTree(tr *Tree) (Hash, error) {
	data, err := MarshalTree(tr)
	if err != nil {
		return "", err
	}
	return s.Write(KindTree, data)
}

// ReadTree reads and deserializes a Tree.
func (s *Store) ReadTree(h Hash) (*Tree, error) {
	data, err := s.readKind(h, KindTree)
	if err != nil {
		return nil, err
	}
	tr, err := UnmarshalTree(data)
	if err != nil {
		return nil, fmt.Errorf("object %s: %w", h, err)
	}
	return tr, nil
}

// WriteCommit serializes and stores a Commit.
func (s *Store) WriteCommit(c *Commit) (Hash, error) {
	return s.Write(KindCommit, MarshalCommit(c))
}

// ReadCommit reads and deserializes a Commit.
func (s *Store) ReadCommit(h Hash) (*Commit, error) {
	data, err := s.readKind(h, KindCommit)
	if err != nil {
		return nil, err
	}
	c, err := UnmarshalCommit(data)
	if err != nil {
		return nil, fmt.Errorf("object %s: %w", h, err)
	}
	return c, nil
}
