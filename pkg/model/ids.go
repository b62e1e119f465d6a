package model

import "strings"

// Node IDs are composed deterministically from type, owner, repo and an
// optional trailing key, joined by ':'. Owner and repo names cannot contain
// ':' on GitHub, so parsing is unambiguous.
const idSep = ":"

// OrgID returns the node id of an organization.
func OrgID(owner string) string {
	return string(TypeOrganization) + idSep + owner
}

// RepoID returns the node id of a repository.
func RepoID(owner, repo string) string {
	return string(TypeRepository) + idSep + owner + idSep + repo
}

// CategoryID returns the node id of a detail category under a repository.
func CategoryID(category NodeType, owner, repo string) string {
	return string(category) + idSep + owner + idSep + repo
}

// ItemID returns the node id of a concrete item under a repository.
// key is the upstream identifier (numeric id, branch name, ...).
func ItemID(item NodeType, owner, repo, key string) string {
	return string(item) + idSep + owner + idSep + repo + idSep + key
}

// ParseRepoID extracts owner and repo from any id that carries them
// (repository, category or item ids). ok is false for organization ids
// and malformed input.
func ParseRepoID(id string) (owner, repo string, ok bool) {
	parts := strings.SplitN(id, idSep, 4)
	if len(parts) < 3 || parts[1] == "" || parts[2] == "" {
		if len(parts) == 2 && NodeType(parts[0]) == TypeOrganization {
			return parts[1], "", false
		}
		return "", "", false
	}
	return parts[1], parts[2], true
}

// TypeOfID returns the node type encoded in id.
func TypeOfID(id string) NodeType {
	head, _, _ := strings.Cut(id, idSep)
	return NodeType(head)
}

// IsPersistable reports whether a node of this type has its enabled flag
// persisted individually. Sub-resource nodes derive theirs from the
// owning repository.
func (t NodeType) IsPersistable() bool {
	return t == TypeOrganization || t == TypeRepository
}
