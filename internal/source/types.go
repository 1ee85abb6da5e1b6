package source

type (
	// FileID uniquely identifies a source file within a FileSet.
	FileID uint32
	// FileFlags encodes metadata about a source file.
	FileFlags uint8
)

// NoFile marks a span that is not anchored to any loaded file.
const NoFile = ^FileID(0)

// FileVirtual marks a file added from memory rather than read from disk.
const FileVirtual FileFlags = 1

// File captures metadata and content for a single source file.
// Content is kept byte for byte as read: go/token offsets index into it.
type File struct {
	ID      FileID
	Path    string
	Content []byte
	LineIdx []uint32
	Hash    [32]byte
	Flags   FileFlags
}

// LineCol is a 1-based position; Col counts bytes, as go/token does.
type LineCol struct {
	Line uint32
	Col  uint32
}
