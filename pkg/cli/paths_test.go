package cli

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPathsLayout(t *testing.T) {
	p := &Paths{HomeDir: "/home/cook"}

	if got, want := p.BaseDir(), filepath.Join("/home/cook", DefaultBaseDir); got != want {
		t.Errorf("BaseDir() = %q; want %q", got, want)
	}
	if got, want := p.ConfigFile(), filepath.Join("/home/cook", DefaultBaseDir, DefaultConfigFile); got != want {
		t.Errorf("ConfigFile() = %q; want %q", got, want)
	}
	if got, want := p.DataPath("sessions.db"), filepath.Join(p.DataDir(), "sessions.db"); got != want {
		t.Errorf("DataPath() = %q; want %q", got, want)
	}
	if got, want := p.LogPath("cook.log"), filepath.Join(p.LogDir(), "cook.log"); got != want {
		t.Errorf("LogPath() = %q; want %q", got, want)
	}
}

func TestPathsEnsure(t *testing.T) {
	p := &Paths{HomeDir: t.TempDir()}

	for name, fn := range map[string]func() error{
		"base":     p.EnsureBaseDir,
		"data":     p.EnsureDataDir,
		"snapshot": p.EnsureSnapshotDir,
		"log":      p.EnsureLogDir,
	} {
		if err := fn(); err != nil {
			t.Fatalf("ensure %s: %v", name, err)
		}
	}

	for _, dir := range []string{p.BaseDir(), p.DataDir(), p.SnapshotDir(), p.LogDir()} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("stat %s: %v", dir, err)
		}
		if !info.IsDir() {
			t.Errorf("%s is not a directory", dir)
		}
	}
}
