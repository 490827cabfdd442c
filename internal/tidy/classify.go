package tidy

import (
	"fmt"
	"time"
)

// Category labels produced by the classifier.
const (
	CategoryOthers      Category = "Others"
	CategoryThisWeek    Category = "This Week"
	CategoryThisMonth   Category = "This Month"
	CategoryThisYear    Category = "This Year"
	CategoryUnknownDate Category = "Unknown Date"
	CategorySmall       Category = "Small (< 1MB)"
	CategoryMedium      Category = "Medium (1-10MB)"
	CategoryLarge       Category = "Large (10-100MB)"
	CategoryVeryLarge   Category = "Very Large (> 100MB)"
	CategoryUnknownSize Category = "Unknown Size"
	CategoryNoExtension Category = "No Extension"
)

const (
	mib = 1024 * 1024

	weekWindow = 7 * 24 * time.Hour
)

type typeRule struct {
	category   Category
	extensions map[string]struct{}
}

func extSet(exts ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		m[e] = struct{}{}
	}
	return m
}

// typeTable is evaluated in order; the first category containing the
// extension wins (deb and rpm land in Archives).
var typeTable = []typeRule{
	{"Documents", extSet("pdf", "doc", "docx", "txt", "rtf", "xls", "xlsx", "ppt", "pptx", "csv", "odt", "ods", "md", "epub")},
	{"Images", extSet("jpg", "jpeg", "png", "gif", "bmp", "tiff", "tif", "svg", "webp", "ico", "raw", "psd", "heic")},
	{"Videos", extSet("mp4", "avi", "mkv", "mov", "wmv", "flv", "webm", "mpg", "mpeg", "m4v", "3gp")},
	{"Audio", extSet("mp3", "wav", "flac", "aac", "ogg", "wma", "m4a", "opus", "aiff")},
	{"Archives", extSet("zip", "rar", "7z", "tar", "gz", "bz2", "xz", "cab", "deb", "rpm", "tgz", "zst")},
	{"Code", extSet("py", "js", "html", "css", "java", "cpp", "c", "h", "php", "rb", "go", "rs", "ts", "jsx", "tsx", "vue", "sh")},
	{"Executables", extSet("exe", "msi", "dmg", "pkg", "app", "run", "apk", "appimage")},
	{"Fonts", extSet("ttf", "otf", "woff", "woff2", "eot")},
	{"Data", extSet("json", "xml", "yaml", "yml", "sql", "db", "sqlite", "toml")},
}

// TypeCategories returns the category labels of type mode in table order,
// followed by the fallback.
func TypeCategories() []Category {
	out := make([]Category, 0, len(typeTable)+1)
	for _, r := range typeTable {
		out = append(out, r.category)
	}
	return append(out, CategoryOthers)
}

// Classify maps a record to its category under mode. It is pure and total:
// every record yields a category and now is the only time source.
func Classify(rec FileRecord, mode Mode, now time.Time) Category {
	switch mode {
	case ModeType:
		return classifyByType(rec.Ext)
	case ModeDate:
		return classifyByDate(rec.ModTime, now)
	case ModeSize:
		return classifyBySize(rec.Size)
	case ModeExtension:
		return classifyByExtension(rec.Ext)
	}
	return CategoryOthers
}

func classifyByType(ext string) Category {
	if ext == "" {
		return CategoryOthers
	}
	for _, r := range typeTable {
		if _, ok := r.extensions[ext]; ok {
			return r.category
		}
	}
	return CategoryOthers
}

// classifyByDate checks the buckets most-recent first; a file that fits
// several ranges takes the first one.
func classifyByDate(mtime, now time.Time) Category {
	if mtime.IsZero() {
		return CategoryUnknownDate
	}
	mtime = mtime.In(now.Location())
	if now.Sub(mtime) <= weekWindow {
		return CategoryThisWeek
	}
	if mtime.Year() == now.Year() && mtime.Month() == now.Month() {
		return CategoryThisMonth
	}
	if mtime.Year() == now.Year() {
		return CategoryThisYear
	}
	return Category(fmt.Sprintf("%04d", mtime.Year()))
}

func classifyBySize(size int64) Category {
	switch {
	case size < 0:
		return CategoryUnknownSize
	case size < 1*mib:
		return CategorySmall
	case size < 10*mib:
		return CategoryMedium
	case size < 100*mib:
		return CategoryLarge
	default:
		return CategoryVeryLarge
	}
}

func classifyByExtension(ext string) Category {
	if ext == "" {
		return CategoryNoExtension
	}
	return Category(ext)
}
