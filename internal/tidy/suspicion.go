package tidy

import (
	"strings"
	"unicode"
)

// Suspicion reasons reported by Reasons.
const (
	ReasonRiskyExtension     = "risky-extension"
	ReasonDoubleExtension    = "double-extension"
	ReasonEmbeddedExecutable = "embedded-executable-extension"
	ReasonHexName            = "hex-name"
	ReasonSpaceBeforeExt     = "space-before-extension"
	ReasonSystemName         = "system-name"
	ReasonTinyExecutable     = "tiny-executable"
	ReasonHiddenExecutable   = "hidden-executable"
)

const (
	minHexStemLength   = 8
	tinyExecutableSize = 1024
)

// riskyExtensions are suspicious on their own: scripts and formats that run
// when opened and are rarely downloaded on purpose.
var riskyExtensions = extSet("bat", "cmd", "com", "scr", "pif", "vbs", "vbe", "ws", "wsf", "wsh", "jar", "hta", "reg")

// executableExtensions are legitimate on their own but suspicious when
// disguised behind another extension or a system-sounding name.
var executableExtensions = extSet(
	"exe", "dll", "msi", "bat", "cmd", "com", "scr", "pif", "vbs", "vbe",
	"js", "jse", "ws", "wsf", "jar", "ps1", "hta", "lnk", "sh",
)

// tinyExecutableExtensions are flagged when smaller than tinyExecutableSize.
var tinyExecutableExtensions = extSet("exe", "com", "bat", "cmd", "scr")

// hiddenExecutableExtensions are flagged when the file is hidden.
var hiddenExecutableExtensions = extSet("exe", "bat", "cmd", "sh")

var systemSubstrings = []string{"system32", "syswow64", "windows", "temp", "tmp", "appdata", "svchost"}

// IsSuspicious reports whether any name or metadata heuristic flags rec.
// It never reads file content; false positives are acceptable.
func IsSuspicious(rec FileRecord) bool {
	return len(Reasons(rec)) > 0
}

// Reasons returns every heuristic that flags rec, in a fixed order.
func Reasons(rec FileRecord) []string {
	name := strings.ToLower(rec.Name)
	ext := rec.Ext
	var reasons []string

	if _, ok := riskyExtensions[ext]; ok {
		reasons = append(reasons, ReasonRiskyExtension)
	}

	suffixes := extensionSuffixes(name)
	if len(suffixes) >= 2 {
		if _, ok := executableExtensions[suffixes[len(suffixes)-1]]; ok {
			reasons = append(reasons, ReasonDoubleExtension)
		}
		for _, s := range suffixes[:len(suffixes)-1] {
			if s == "exe" || s == "dll" {
				reasons = append(reasons, ReasonEmbeddedExecutable)
				break
			}
		}
	}

	if isHexStem(stemOf(name)) {
		reasons = append(reasons, ReasonHexName)
	}

	_, isExec := executableExtensions[ext]
	if isExec && hasSpaceBeforeExtension(name) {
		reasons = append(reasons, ReasonSpaceBeforeExt)
	}

	if isExec {
		for _, sub := range systemSubstrings {
			if strings.Contains(stemOf(name), sub) {
				reasons = append(reasons, ReasonSystemName)
				break
			}
		}
	}

	if _, ok := tinyExecutableExtensions[ext]; ok && rec.Size >= 0 && rec.Size < tinyExecutableSize {
		reasons = append(reasons, ReasonTinyExecutable)
	}

	if _, ok := hiddenExecutableExtensions[ext]; ok && (rec.Hidden || strings.HasPrefix(name, ".")) {
		reasons = append(reasons, ReasonHiddenExecutable)
	}

	return reasons
}

// extensionSuffixes returns the trailing dot-separated suffixes of name that
// look like extensions (2-5 alphanumerics containing a letter), stopping at
// the first one that does not. "report.v2.pdf.exe" yields [pdf exe].
func extensionSuffixes(name string) []string {
	parts := strings.Split(strings.TrimLeft(name, "."), ".")
	if len(parts) < 2 {
		return nil
	}
	var out []string
	for i := len(parts) - 1; i >= 1; i-- {
		if !looksLikeExtension(parts[i]) {
			break
		}
		out = append([]string{parts[i]}, out...)
	}
	return out
}

func looksLikeExtension(s string) bool {
	if len(s) < 2 || len(s) > 5 {
		return false
	}
	hasLetter := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
			hasLetter = true
		case r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return hasLetter
}

// stemOf strips the final extension.
func stemOf(name string) string {
	if i := strings.LastIndex(name, "."); i > 0 {
		return name[:i]
	}
	return name
}

// isHexStem reports stems like "3f9a0c1d7e" that are all hex digits. Purely
// decimal stems ("20240115") are dates and counters, not payload hashes.
func isHexStem(stem string) bool {
	if len(stem) < minHexStemLength {
		return false
	}
	hasHexLetter := false
	for _, r := range stem {
		switch {
		case r >= 'a' && r <= 'f':
			hasHexLetter = true
		case r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return hasHexLetter
}

func hasSpaceBeforeExtension(name string) bool {
	i := strings.LastIndex(name, ".")
	if i <= 0 {
		return false
	}
	r := rune(name[i-1])
	return unicode.IsSpace(r)
}
