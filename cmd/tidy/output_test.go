package main

import (
	"bytes"
	"strings"
	"testing"

	"tidy-go/internal/tidy"
)

func TestRenderPlan_ShowsReasons(t *testing.T) {
	entries := []tidy.PlanEntry{
		{
			Record:      tidy.FileRecord{Name: "report.pdf", Ext: "pdf", Size: 2048},
			Category:    "Documents",
			Destination: "/root/Documents/report.pdf",
		},
		{
			Record:      tidy.FileRecord{Name: "invoice.pdf.exe", Ext: "exe", Size: 500},
			Category:    tidy.SuspiciousCategory,
			Destination: "/root/Suspicious/invoice.pdf.exe",
			Suspicious:  true,
		},
	}

	var buf bytes.Buffer
	renderPlan(&buf, "/root", entries)
	out := buf.String()

	for _, want := range []string{"Flagged", "Suspicious/invoice.pdf.exe", tidy.ReasonDoubleExtension + ", " + tidy.ReasonTinyExecutable} {
		if !strings.Contains(out, want) {
			t.Errorf("plan output missing %q:\n%s", want, out)
		}
	}
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "report.pdf") && strings.Contains(line, "extension") {
			t.Errorf("clean file shows a reason: %s", line)
		}
	}
}

func TestModeFolders(t *testing.T) {
	tests := []struct {
		mode tidy.Mode
		want []string
	}{
		{tidy.ModeType, []string{"Images", "Documents", "Others"}},
		{tidy.ModeDate, []string{"This Week", "<YYYY>", "Unknown Date"}},
		{tidy.ModeSize, []string{"Small (< 1MB)", "Very Large (> 100MB)"}},
		{tidy.ModeExtension, []string{"<ext>", "No Extension"}},
	}

	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			got := strings.Join(modeFolders(tt.mode), "|")
			for _, w := range tt.want {
				if !strings.Contains("|"+got+"|", "|"+w+"|") {
					t.Errorf("modeFolders(%s) = %s, missing %q", tt.mode, got, w)
				}
			}
		})
	}

	t.Run("type ends with fallback", func(t *testing.T) {
		folders := modeFolders(tidy.ModeType)
		if folders[len(folders)-1] != string(tidy.CategoryOthers) {
			t.Errorf("last type folder = %q, want %q", folders[len(folders)-1], tidy.CategoryOthers)
		}
	})
}

func TestRenderModes(t *testing.T) {
	var buf bytes.Buffer
	renderModes(&buf)
	out := buf.String()
	for _, m := range tidy.Modes {
		if !strings.Contains(out, m.String()) {
			t.Errorf("modes output missing %s", m)
		}
	}
	if !strings.Contains(out, string(tidy.SuspiciousCategory)) {
		t.Errorf("modes output does not mention %s", tidy.SuspiciousCategory)
	}
}
