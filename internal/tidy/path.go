package tidy

import "io/fs"

// Path is a resolved absolute path with the stat info captured at resolve time.
// Paths are produced by FilesystemManager.Resolve and FilesystemManager.FindFiles.
type Path struct {
	absPath string
	isDir   bool
	info    fs.FileInfo
}

// NewPath creates a Path from its components.
// This is primarily for use by FilesystemManager implementations.
func NewPath(absPath string, isDir bool, info fs.FileInfo) *Path {
	return &Path{
		absPath: absPath,
		isDir:   isDir,
		info:    info,
	}
}

func (p *Path) String() string {
	return p.absPath
}

func (p *Path) IsDir() bool {
	return p.isDir
}

// Info returns the cached file info; later changes on disk are not reflected.
func (p *Path) Info() fs.FileInfo {
	return p.info
}
