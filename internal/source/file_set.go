package source

import "sort"

// File captures metadata for a single source file referenced by spans.
type File struct {
	ID      FileID
	Path    string
	Content []byte
	lineIdx []uint32
}

// LineCol is a human-readable 1-based position.
type LineCol struct {
	Line uint32
	Col  uint32
}

// FileSet maps FileIDs to files. The backend never reads files from disk
// itself; the driver registers whatever the front end already loaded.
type FileSet struct {
	files []*File
}

func NewFileSet() *FileSet {
	// index 0 reserved for NoFileID
	return &FileSet{files: []*File{nil}}
}

// Add registers content under a new FileID and returns it.
func (fs *FileSet) Add(path string, content []byte) FileID {
	f := &File{
		ID:      FileID(len(fs.files)),
		Path:    path,
		Content: content,
		lineIdx: buildLineIndex(content),
	}
	fs.files = append(fs.files, f)
	return f.ID
}

// Get returns the file for id, or nil.
func (fs *FileSet) Get(id FileID) *File {
	if id == NoFileID || int(id) >= len(fs.files) {
		return nil
	}
	return fs.files[id]
}

// Position resolves a byte offset to line/column for diagnostics output.
func (fs *FileSet) Position(id FileID, offset uint32) (LineCol, bool) {
	f := fs.Get(id)
	if f == nil {
		return LineCol{}, false
	}
	line := sort.Search(len(f.lineIdx), func(i int) bool {
		return f.lineIdx[i] > offset
	})
	if line == 0 {
		return LineCol{Line: 1, Col: offset + 1}, true
	}
	return LineCol{
		Line: uint32(line) + 1,
		Col:  offset - f.lineIdx[line-1] + 1,
	}, true
}

func buildLineIndex(content []byte) []uint32 {
	var idx []uint32
	for i, b := range content {
		if b == '\n' {
			idx = append(idx, uint32(i)+1)
		}
	}
	return idx
}
