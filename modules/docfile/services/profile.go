package services

import (

	"github.com/meridian-hq/docvault/modules/docfile/domain/types"
	"github.com/meridian-hq/docvault/pkg/classification"
)

// ProfileResolver computes a file's effective security profile. Each field
// falls back to the owning document independently: the file override flag is
// the sole switch, the document value applies otherwise. Nothing is cached;
// the profile is recomputed on every access check.
type ProfileResolver struct {
	lattice classification.Lattice
	groups  GroupSnapshot
}

func NewProfileResolver(lattice classification.Lattice, groups GroupSnapshot) ProfileResolver {
	return ProfileResolver{lattice: lattice, groups: groups}
}

func (r ProfileResolver) ResolveProfile(doc types.Document, file types.DocumentFile) (types.SecurityProfile, error) {
	levelName := doc.Classification
	if v, ok := file.Classification.Get(); ok {
		levelName = v
	}
	level, ok := r.lattice.LevelByName(levelName)
	if !ok {
		return types.SecurityProfile{}, &UnknownLevelError{Name: levelName}
	}

	releasableIDs := doc.ReleasableTo
	if v, ok := file.ReleasableTo.Get(); ok {
		// Stored overrides are pre-filtered at assignment time; stripping
		// again keeps the resolver total over rows written before a group
		// was promoted to default.
		releasableIDs = r.groups.StripDefaults(v)
	}
	releasable, err := r.resolveRefs("releasable_to", releasableIDs)
	if err != nil {
		return types.SecurityProfile{}, err
	}

	eyesOnlyIDs := doc.EyesOnly
	if v, ok := file.EyesOnly.Get(); ok {
		eyesOnlyIDs = v
	}
	eyesOnly, err := r.resolveRefs("eyes_only", eyesOnlyIDs)
	if err != nil {
		return types.SecurityProfile{}, err
	}

	return types.SecurityProfile{
		Classification: level,
		ReleasableTo:   releasable,
		EyesOnly:       eyesOnly,
	}, nil
}

// ResolveDocumentProfile treats the document's own fields as the profile,
// used when gating operations on the document itself (file creation,
// listing).
func (r ProfileResolver) ResolveDocumentProfile(doc types.Document) (types.SecurityProfile, error) {
	return r.ResolveProfile(doc, types.DocumentFile{})
}

func (r ProfileResolver) resolveRefs(field string, ids []string) ([]types.Group, error) {
	groups, err := r.groups.Resolve(ids)
	if err != nil {
		if ug, ok := asType[*UnknownGroupError](err); ok {
			return nil, &InvalidGroupReferenceError{Field: field, GroupID: ug.GroupID}
		}
		return nil, err
	}
	return groups, nil
}

type UnknownLevelError struct {
	Name string
}

func (e *UnknownLevelError) Error() string { return "unknown classification level: " + e.Name }
