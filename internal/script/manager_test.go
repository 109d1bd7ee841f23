//go:build !no_script

package script

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	mgr, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return mgr
}

func TestSaveGeneratesID(t *testing.T) {
	mgr := newTestManager(t)

	saved, err := mgr.Save(&Script{
		Meta:    ScriptMeta{Name: "Warm-Up Ramp"},
		LuaCode: `laser.log("hi")`,
	})
	if err != nil {
		t.Fatal(err)
	}
	if saved.ID != "warm_up_ramp" {
		t.Errorf("id = %q, want warm_up_ramp", saved.ID)
	}
}

func TestSaveUniquifiesID(t *testing.T) {
	mgr := newTestManager(t)

	first, err := mgr.Save(&Script{Meta: ScriptMeta{Name: "Ramp"}})
	if err != nil {
		t.Fatal(err)
	}
	second, err := mgr.Save(&Script{Meta: ScriptMeta{Name: "Ramp"}})
	if err != nil {
		t.Fatal(err)
	}
	if first.ID == second.ID {
		t.Errorf("duplicate id %q", first.ID)
	}
}

func TestRoundTripPreservesMetaAndCode(t *testing.T) {
	mgr := newTestManager(t)

	code := "laser.set_current(100)\nlaser.enable()"
	saved, err := mgr.Save(&Script{
		Meta:    ScriptMeta{Name: "Enable", Description: "turn the laser on"},
		LuaCode: code,
	})
	if err != nil {
		t.Fatal(err)
	}

	got, err := mgr.Get(saved.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Meta.Name != "Enable" || got.Meta.Description != "turn the laser on" {
		t.Errorf("meta = %+v", got.Meta)
	}
	if strings.TrimRight(got.LuaCode, "\n") != code {
		t.Errorf("code = %q, want %q", got.LuaCode, code)
	}
}

func TestListSkipsNonLuaFiles(t *testing.T) {
	dir := t.TempDir()
	mgr, err := NewManager(dir)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := mgr.Save(&Script{Meta: ScriptMeta{Name: "Real"}}); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	scripts, err := mgr.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(scripts) != 1 {
		t.Errorf("scripts = %d, want 1", len(scripts))
	}
}

func TestGetRejectsPathTraversal(t *testing.T) {
	mgr := newTestManager(t)

	for _, id := range []string{"../etc/passwd", "a/b", `a\b`, "..", ""} {
		if _, err := mgr.Get(id); err == nil {
			t.Errorf("Get(%q) accepted an unsafe id", id)
		}
	}
}

func TestDelete(t *testing.T) {
	mgr := newTestManager(t)

	saved, err := mgr.Save(&Script{Meta: ScriptMeta{Name: "Gone"}})
	if err != nil {
		t.Fatal(err)
	}
	if err := mgr.Delete(saved.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := mgr.Get(saved.ID); err == nil {
		t.Error("deleted macro still readable")
	}
}
