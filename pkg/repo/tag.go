package repo

import (
	"errors"
	"fmt"
	"strings"

	"github.com/odvcencio/sandgit/pkg/object"
)

// CreateTag creates or (with force) moves a lightweight tag under
// refs/tags/.
func (r *Repo) CreateTag(name string, target object.Hash, force bool) error {
	name = strings.TrimSpace(name)
	if err := validateTagName(name); err != nil {
		return fmt.Errorf("create tag: %w", err)
	}
	if !r.Store.Has(target) {
		return fmt.Errorf("create tag %q: %w: %s", name, object.ErrObjectNotFound, target)
	}
	refName := "refs/tags/" + name
	if force {
		if err := r.updateRef(refName, target, nil, "tag: "+name); err != nil {
			return fmt.Errorf("create tag: %w", err)
		}
		return nil
	}
	empty := object.Hash("")
	if err := r.updateRef(refName, target, &empty, "tag: "+name); err != nil {
		if errors.Is(err, ErrRefConflict) {
			return fmt.Errorf("create tag %q: %w", name, ErrRefExists)
		}
		return fmt.Errorf("create tag: %w", err)
	}
	return nil
}

// DeleteTag removes refs/tags/<name>.
func (r *Repo) DeleteTag(name string) error {
	name = strings.TrimSpace(name)
	if err := validateTagName(name); err != nil {
		return fmt.Errorf("delete tag: %w", err)
	}
	if err := r.DeleteRef("refs/tags/" + name); err != nil {
		return fmt.Errorf("delete tag: %w", err)
	}
	return nil
}

// ListTags lists tag names sorted alphabetically.
func (r *Repo) ListTags() ([]string, error) {
	names, err := r.listShortRefs("refs/tags/")
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	return names, nil
}

func validateTagName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: tag name is required", ErrInvalidRefName)
	}
	return validateRefName("refs/tags/" + name)
}
