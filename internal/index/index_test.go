// SPDX-License-Identifier: MPL-2.0

package index

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/plater3d/plater/internal/profile"
)

type profileSpec struct {
	file        string
	name        string
	typ         string
	version     string
	qualityType string
	machine     string
}

func (s profileSpec) render() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[general]\nname = %s\n\n[metadata]\ntype = %s\n", s.name, s.typ)
	version := s.version
	if version == "" {
		version = profile.SupportedSettingVersion
	}
	fmt.Fprintf(&sb, "setting_version = %s\n", version)
	if s.qualityType != "" {
		fmt.Fprintf(&sb, "quality_type = %s\n", s.qualityType)
	}
	if s.machine != "" {
		fmt.Fprintf(&sb, "machine = %s\n", s.machine)
	}
	sb.WriteString("\n[values]\n")
	return sb.String()
}

func writeProfiles(t *testing.T, specs ...profileSpec) string {
	t.Helper()
	root := t.TempDir()
	for _, s := range specs {
		path := filepath.Join(root, filepath.FromSlash(s.file))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(s.render()), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func codes(diags []Diagnostic) []Code {
	var out []Code
	for _, d := range diags {
		out = append(out, d.Code)
	}
	return out
}

func TestBuild_DraftExclusion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		specs   []profileSpec
		want    []string
		wantLog []Code
	}{
		{
			name: "new draft ignored",
			specs: []profileSpec{
				{file: "quality_changes/a_fine.inst.cfg", name: "Mine", typ: "quality_changes", qualityType: "normal"},
				{file: "quality_changes/b_draft.inst.cfg", name: "Mine", typ: "quality_changes", qualityType: "draft"},
			},
			want:    []string{"a_fine"},
			wantLog: []Code{CodeDraftQualityIgnored},
		},
		{
			name: "existing draft dropped",
			specs: []profileSpec{
				{file: "quality_changes/a_draft.inst.cfg", name: "Mine", typ: "quality_changes", qualityType: "draft"},
				{file: "quality_changes/b_fine.inst.cfg", name: "Mine", typ: "quality_changes", qualityType: "normal"},
			},
			want:    []string{"b_fine"},
			wantLog: []Code{CodeDraftQualityIgnored},
		},
		{
			name: "non-draft chain kept in order",
			specs: []profileSpec{
				{file: "quality_changes/a.inst.cfg", name: "Mine", typ: "quality_changes", qualityType: "fast"},
				{file: "quality_changes/b.inst.cfg", name: "Mine", typ: "quality_changes", qualityType: "draft"},
				{file: "quality_changes/c.inst.cfg", name: "Mine", typ: "quality_changes", qualityType: "normal"},
			},
			want:    []string{"a", "c"},
			wantLog: []Code{CodeDraftQualityIgnored},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			idx, err := Build(context.Background(), writeProfiles(t, tt.specs...))
			if err != nil {
				t.Fatalf("Build() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, idx.ByName("Mine")); diff != "" {
				t.Errorf("ByName() mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantLog, codes(idx.Diagnostics())); diff != "" {
				t.Errorf("diagnostics mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBuild_NameOverwritten(t *testing.T) {
	t.Parallel()

	root := writeProfiles(t,
		profileSpec{file: "a.inst.cfg", name: "Shared", typ: "variant"},
		profileSpec{file: "b.inst.cfg", name: "Shared", typ: "quality"},
	)
	idx, err := Build(context.Background(), root)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if diff := cmp.Diff([]string{"b"}, idx.ByName("Shared")); diff != "" {
		t.Errorf("ByName() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]Code{CodeNameOverwritten}, codes(idx.Diagnostics())); diff != "" {
		t.Errorf("diagnostics mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_DuplicateID(t *testing.T) {
	t.Parallel()

	root := writeProfiles(t,
		profileSpec{file: "machine_instances/printer.global.cfg", name: "P1", typ: "machine"},
		profileSpec{file: "user/printer.inst.cfg", name: "P2", typ: "quality"},
	)
	_, err := Build(context.Background(), root)
	if !errors.Is(err, ErrIntegrity) {
		t.Fatalf("Build() error = %v, want ErrIntegrity", err)
	}
	var ie *IntegrityError
	if !errors.As(err, &ie) {
		t.Fatalf("error should be *IntegrityError, got %T", err)
	}
	if ie.ID != "printer" {
		t.Errorf("ID = %q, want %q", ie.ID, "printer")
	}
}

func TestBuild_DuplicateIDAfterDecoding(t *testing.T) {
	t.Parallel()

	root := writeProfiles(t,
		profileSpec{file: "a/my%20printer.global.cfg", name: "P1", typ: "machine"},
		profileSpec{file: "b/my+printer.global.cfg", name: "P2", typ: "machine"},
	)
	if _, err := Build(context.Background(), root); !errors.Is(err, ErrIntegrity) {
		t.Errorf("Build() error = %v, want ErrIntegrity", err)
	}
}

func TestBuild_SkipsUnsupportedAndMalformed(t *testing.T) {
	t.Parallel()

	root := writeProfiles(t,
		profileSpec{file: "old.inst.cfg", name: "Old", typ: "quality", version: "19"},
		profileSpec{file: "ok.inst.cfg", name: "Ok", typ: "quality"},
	)
	if err := os.WriteFile(filepath.Join(root, "broken.inst.cfg"), []byte("[metadata\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	idx, err := Build(context.Background(), root)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if idx.HasName("Old") {
		t.Error("profile with unsupported version should not be registered")
	}
	if _, ok := idx.PathForID("old"); !ok {
		t.Error("PathForID(old) should still know the skipped file")
	}
	if _, ok := idx.ByID("ok"); !ok {
		t.Error("ByID(ok) not found")
	}

	want := []Code{CodeProfileParseSkipped, CodeUnsupportedSettingVersion}
	if diff := cmp.Diff(want, codes(idx.Diagnostics())); diff != "" {
		t.Errorf("diagnostics mismatch (-want +got):\n%s", diff)
	}
	if !errors.Is(idx.Diagnostics()[0].Cause, profile.ErrFormat) {
		t.Error("parse diagnostic should carry the profile.ErrFormat cause")
	}
}

func TestBuild_MissingRoot(t *testing.T) {
	t.Parallel()

	idx, err := Build(context.Background(), filepath.Join(t.TempDir(), "absent"))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(idx.Profiles()) != 0 {
		t.Error("index of a missing root should be empty")
	}
	if diff := cmp.Diff([]Code{CodeRootMissing}, codes(idx.Diagnostics())); diff != "" {
		t.Errorf("diagnostics mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_Canceled(t *testing.T) {
	t.Parallel()

	root := writeProfiles(t, profileSpec{file: "a.inst.cfg", name: "A", typ: "quality"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Build(ctx, root); !errors.Is(err, context.Canceled) {
		t.Errorf("Build() error = %v, want context.Canceled", err)
	}
}

func TestIndex_MachinesAndExtruders(t *testing.T) {
	t.Parallel()

	root := writeProfiles(t,
		profileSpec{file: "machine_instances/ender.global.cfg", name: "Ender", typ: "machine"},
		profileSpec{file: "machine_instances/prusa.global.cfg", name: "Prusa", typ: "machine"},
		profileSpec{file: "extruders/ender_e0.extruder.cfg", name: "Ender E0", typ: "extruder_train", machine: "Ender"},
		profileSpec{file: "extruders/ender_e1.extruder.cfg", name: "Ender E1", typ: "extruder_train", machine: "Ender"},
		profileSpec{file: "extruders/prusa_e0.extruder.cfg", name: "Prusa E0", typ: "extruder_train", machine: "Prusa"},
	)
	idx, err := Build(context.Background(), root)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if diff := cmp.Diff([]string{"Ender", "Prusa"}, idx.Machines()); diff != "" {
		t.Errorf("Machines() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Ender E0", "Ender E1"}, idx.ExtrudersForMachine("Ender")); diff != "" {
		t.Errorf("ExtrudersForMachine() mismatch (-want +got):\n%s", diff)
	}
	if m, ok := idx.MachineByName("Prusa"); !ok || m.ID != "prusa" {
		t.Errorf("MachineByName(Prusa) = %v, %v", m, ok)
	}
	if _, ok := idx.ExtruderByName("Ender"); ok {
		t.Error("ExtruderByName should not return machines")
	}
	if e, ok := idx.ExtruderByName("Prusa E0"); !ok || e.Machine != "Prusa" {
		t.Errorf("ExtruderByName(Prusa E0) = %v, %v", e, ok)
	}
}
