package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

const testSidecar = `<x:xmpmeta xmlns:x="adobe:ns:meta/">
 <rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#">
  <rdf:Description rdf:about=""
    xmlns:xmp="http://ns.adobe.com/xap/1.0/"
    xmlns:lr="http://ns.adobe.com/lightroom/1.0/"
    xmp:Rating="3">
   <lr:hierarchicalSubject>
    <rdf:Bag><rdf:li>Trips|Norway</rdf:li></rdf:Bag>
   </lr:hierarchicalSubject>
  </rdf:Description>
 </rdf:RDF>
</x:xmpmeta>
`

type testEnv struct {
	photoDir string
	thumbDir string
}

// setupEnv points the configuration at temp dirs and a shell script that
// stands in for the raw developer.
func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script developer requires a POSIX shell")
	}

	root := t.TempDir()
	photoDir := filepath.Join(root, "photos")
	if err := os.MkdirAll(photoDir, 0o755); err != nil {
		t.Fatal(err)
	}

	developer := filepath.Join(root, "fake-darktable-cli")
	script := "#!/bin/sh\nfor a in \"$@\"; do case \"$a\" in *.jpg) printf 'jpeg' > \"$a\";; esac; done\n"
	if err := os.WriteFile(developer, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}

	t.Setenv("ENV_FILE", filepath.Join(root, "absent.env"))
	t.Setenv("PHOTO_DIR", photoDir)
	t.Setenv("CACHE_DIR", filepath.Join(root, "cache"))
	t.Setenv("DATABASE_DIR", filepath.Join(root, "database"))
	t.Setenv("THUMBNAIL_STRATEGY", "develop")
	t.Setenv("DEVELOP_COMMAND", developer)
	t.Setenv("INGEST_WORKERS", "1")
	t.Setenv("MEMORY_LIMIT", "")
	t.Setenv("GOMEMLIMIT", "")

	return &testEnv{
		photoDir: photoDir,
		thumbDir: filepath.Join(root, "cache", "thumbnails"),
	}
}

func (e *testEnv) addPhoto(t *testing.T, name string, withSidecar bool) {
	t.Helper()
	rawPath := filepath.Join(e.photoDir, name)
	if err := os.WriteFile(rawPath, []byte("raw"), 0o644); err != nil {
		t.Fatal(err)
	}
	if withSidecar {
		if err := os.WriteFile(rawPath+".xmp", []byte(testSidecar), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func runIngest(ctx context.Context, args ...string) (code int, stdout, stderr string) {
	var out, errOut bytes.Buffer
	code = run(ctx, args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestRunIngestsAndReportsFresh(t *testing.T) {
	env := setupEnv(t)
	env.addPhoto(t, "IMG_0001.CR2", true)
	env.addPhoto(t, "IMG_0002.NEF", true)

	code, stdout, stderr := runIngest(context.Background())
	if code != exitOK {
		t.Fatalf("Expected exit 0, got %d: %s", code, stderr)
	}
	for _, want := range []string{"Scanned:  2", "Ingested: 2", "Failed:   0"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("Expected %q in output:\n%s", want, stdout)
		}
	}

	code, stdout, _ = runIngest(context.Background())
	if code != exitOK {
		t.Fatalf("Expected exit 0 on second run, got %d", code)
	}
	if !strings.Contains(stdout, "Fresh:    2") {
		t.Errorf("Expected both files fresh on the second run:\n%s", stdout)
	}
}

func TestRunExitsOneOnFailures(t *testing.T) {
	env := setupEnv(t)
	env.addPhoto(t, "IMG_0001.CR2", true)
	env.addPhoto(t, "IMG_0002.CR2", false)

	code, stdout, _ := runIngest(context.Background())
	if code != exitFailures {
		t.Fatalf("Expected exit 1, got %d", code)
	}
	if !strings.Contains(stdout, "Failed:   1 (parse: 1)") {
		t.Errorf("Expected failure breakdown in output:\n%s", stdout)
	}
}

func TestRunConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		args []string
	}{
		{"unknown flag", nil, []string{"-bogus"}},
		{"extra argument", nil, []string{"photos"}},
		{"negative workers", nil, []string{"-workers", "-3"}},
		{"missing photo dir", nil, []string{"-dir", "/nonexistent/photos"}},
		{"develop command not found", map[string]string{"DEVELOP_COMMAND": "no-such-developer"}, nil},
		{"bad strategy", map[string]string{"THUMBNAIL_STRATEGY": "paint"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if code, _, _ := runIngest(context.Background(), tt.args...); code != exitConfig {
				t.Errorf("Expected exit 2, got %d", code)
			}
		})
	}
}

func TestRunHelp(t *testing.T) {
	setupEnv(t)
	code, _, stderr := runIngest(context.Background(), "-h")
	if code != exitOK {
		t.Errorf("Expected exit 0 for -h, got %d", code)
	}
	if !strings.Contains(stderr, "-prune-thumbnails") {
		t.Errorf("Expected usage on stderr, got %q", stderr)
	}
}

func TestRunInterrupted(t *testing.T) {
	env := setupEnv(t)
	env.addPhoto(t, "IMG_0001.CR2", true)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	code, _, stderr := runIngest(ctx)
	if code != exitAborted {
		t.Errorf("Expected exit 3, got %d: %s", code, stderr)
	}
}

func TestRunDirFlagAndPrune(t *testing.T) {
	env := setupEnv(t)

	other := filepath.Join(t.TempDir(), "elsewhere")
	if err := os.MkdirAll(other, 0o755); err != nil {
		t.Fatal(err)
	}
	(&testEnv{photoDir: other}).addPhoto(t, "IMG_0100.ARW", true)

	if err := os.MkdirAll(env.thumbDir, 0o755); err != nil {
		t.Fatal(err)
	}
	orphan := filepath.Join(env.thumbDir, "orphan.jpg")
	if err := os.WriteFile(orphan, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-time.Hour)
	if err := os.Chtimes(orphan, old, old); err != nil {
		t.Fatal(err)
	}

	code, stdout, stderr := runIngest(context.Background(), "-dir", other, "-workers", "2", "-prune-thumbnails")
	if code != exitOK {
		t.Fatalf("Expected exit 0, got %d: %s", code, stderr)
	}
	if !strings.Contains(stdout, "Ingested: 1") {
		t.Errorf("Expected the -dir photo to be ingested:\n%s", stdout)
	}
	if !strings.Contains(stdout, "Pruned:   1 unreferenced thumbnails") {
		t.Errorf("Expected one pruned thumbnail:\n%s", stdout)
	}
	if _, err := os.Stat(orphan); !os.IsNotExist(err) {
		t.Errorf("Orphan thumbnail should be gone, stat err = %v", err)
	}

	entries, err := os.ReadDir(env.thumbDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("Expected the new thumbnail to remain, found %d files", len(entries))
	}
}
