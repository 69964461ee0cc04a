package services

import (
	"testing"

	"github.com/meridian-hq/docvault/modules/docfile/domain/types"
)

func TestResolveProfile_NoOverridesMirrorsDocument(t *testing.T) {
	l := testLattice(t)
	snap := testGroups()
	r := NewProfileResolver(l, snap)

	doc := types.Document{
		ID:             "d1",
		Classification: "SECRET",
		ReleasableTo:   []string{"g1", "g2"},
		EyesOnly:       []string{"g3"},
	}
	profile, err := r.ResolveProfile(doc, types.DocumentFile{ID: "f1", DocumentID: "d1"})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if profile.Classification.Name != "SECRET" {
		t.Fatalf("classification=%+v", profile.Classification)
	}
	if ids := groupIDs(profile.ReleasableTo); ids != "g1,g2" {
		t.Fatalf("releasable=%s", ids)
	}
	if ids := groupIDs(profile.EyesOnly); ids != "g3" {
		t.Fatalf("eyes-only=%s", ids)
	}
}

func TestResolveProfile_FieldsFallBackIndependently(t *testing.T) {
	l := testLattice(t)
	snap := testGroups()
	r := NewProfileResolver(l, snap)

	doc := types.Document{
		ID:             "d1",
		Classification: "CONFIDENTIAL",
		ReleasableTo:   []string{"g1"},
		EyesOnly:       []string{"g2"},
	}

	// Only classification overridden: the group fields stay inherited.
	file := types.DocumentFile{ID: "f1", DocumentID: "d1", Classification: types.Overridden("TOP_SECRET")}
	profile, err := r.ResolveProfile(doc, file)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if profile.Classification.Name != "TOP_SECRET" {
		t.Fatalf("classification=%+v", profile.Classification)
	}
	if groupIDs(profile.ReleasableTo) != "g1" || groupIDs(profile.EyesOnly) != "g2" {
		t.Fatalf("profile=%+v", profile)
	}

	// Only releasable-to overridden.
	file = types.DocumentFile{ID: "f1", DocumentID: "d1", ReleasableTo: types.Overridden([]string{"g3"})}
	profile, err = r.ResolveProfile(doc, file)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if profile.Classification.Name != "CONFIDENTIAL" {
		t.Fatalf("classification=%+v", profile.Classification)
	}
	if groupIDs(profile.ReleasableTo) != "g3" || groupIDs(profile.EyesOnly) != "g2" {
		t.Fatalf("profile=%+v", profile)
	}

	// Empty override is an override: it clears the document restriction.
	file = types.DocumentFile{ID: "f1", DocumentID: "d1", EyesOnly: types.Overridden([]string{})}
	profile, err = r.ResolveProfile(doc, file)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(profile.EyesOnly) != 0 {
		t.Fatalf("eyes-only=%v", profile.EyesOnly)
	}
}

func TestResolveProfile_StripsDefaultsFromOverride(t *testing.T) {
	l := testLattice(t)
	snap := testGroups()
	r := NewProfileResolver(l, snap)

	doc := types.Document{ID: "d1", Classification: "SECRET"}
	// A row written before "everyone" became a default group.
	file := types.DocumentFile{
		ID:           "f1",
		DocumentID:   "d1",
		ReleasableTo: types.Overridden([]string{"everyone", "g1"}),
	}
	profile, err := r.ResolveProfile(doc, file)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if ids := groupIDs(profile.ReleasableTo); ids != "g1" {
		t.Fatalf("releasable=%s", ids)
	}
}

func TestResolveProfile_InvalidGroupReference(t *testing.T) {
	l := testLattice(t)
	snap := testGroups()
	r := NewProfileResolver(l, snap)

	doc := types.Document{ID: "d1", Classification: "SECRET"}
	file := types.DocumentFile{
		ID:           "f1",
		DocumentID:   "d1",
		EyesOnly:     types.Overridden([]string{"g1", "ghost"}),
	}
	_, err := r.ResolveProfile(doc, file)
	ref, ok := InvalidGroupReference(err)
	if !ok {
		t.Fatalf("err=%v", err)
	}
	if ref.GroupID != "ghost" || ref.Field != "eyes_only" {
		t.Fatalf("ref=%+v", ref)
	}
}

func TestResolveProfile_UnknownLevel(t *testing.T) {
	l := testLattice(t)
	r := NewProfileResolver(l, testGroups())

	doc := types.Document{ID: "d1", Classification: "ULTRAVIOLET"}
	_, err := r.ResolveProfile(doc, types.DocumentFile{ID: "f1"})
	if err == nil {
		t.Fatalf("expected error")
	}
}

func groupIDs(groups []types.Group) string {
	out := ""
	for i, g := range groups {
		if i > 0 {
			out += ","
		}
		out += g.ID
	}
	return out
}
