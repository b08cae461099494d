package extract

import (
	"os"
	"path/filepath"
	"testing"
)

func TestReadSources(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.pdf", "b.pdf", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(name), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	srcs, err := ReadSources([]string{filepath.Join(dir, "*.pdf"), filepath.Join(dir, "notes.txt")})
	if err != nil {
		t.Fatalf("ReadSources: %v", err)
	}
	if len(srcs) != 3 || srcs[0].Name != "a.pdf" || srcs[2].Name != "notes.txt" || string(srcs[1].Data) != "b.pdf" {
		t.Fatalf("unexpected sources %+v", srcs)
	}
	if _, err := ReadSources([]string{filepath.Join(dir, "missing.pdf")}); err == nil {
		t.Fatalf("expected missing file error")
	}
	if _, err := ReadSources([]string{dir}); err == nil {
		t.Fatalf("expected directory error")
	}
}
