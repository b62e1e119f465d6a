package tree

import "github.com/vanderheijden86/ghtree/pkg/model"

// Visitor is called for each node in depth-first pre-order. ancestors holds
// the chain from the root down to the parent of node and must not be
// retained. Returning false skips node's descendants.
type Visitor func(node *model.TreeNode, ancestors []*model.TreeNode) bool

// Walk visits every node depth-first in tree order.
func Walk(roots []*model.TreeNode, visit Visitor) {
	var stack []*model.TreeNode
	var walk func(nodes []*model.TreeNode)
	walk = func(nodes []*model.TreeNode) {
		for _, n := range nodes {
			if n == nil {
				continue
			}
			if !visit(n, stack) {
				continue
			}
			if len(n.Children) > 0 {
				stack = append(stack, n)
				walk(n.Children)
				stack = stack[:len(stack)-1]
			}
		}
	}
	walk(roots)
}

// Find returns the node with the given id, or nil.
func Find(roots []*model.TreeNode, id string) *model.TreeNode {
	path := PathTo(roots, id)
	if len(path) == 0 {
		return nil
	}
	return path[len(path)-1]
}

// PathTo returns the chain of nodes from a root down to and including the
// node with the given id, or nil when it is absent.
func PathTo(roots []*model.TreeNode, id string) []*model.TreeNode {
	var found []*model.TreeNode
	Walk(roots, func(n *model.TreeNode, ancestors []*model.TreeNode) bool {
		if found != nil {
			return false
		}
		if n.ID == id {
			found = make([]*model.TreeNode, 0, len(ancestors)+1)
			found = append(found, ancestors...)
			found = append(found, n)
			return false
		}
		return true
	})
	return found
}

// RepoAncestor returns the nearest repository on the path to id (the node
// itself when it is a repository), or nil.
func RepoAncestor(roots []*model.TreeNode, id string) *model.TreeNode {
	path := PathTo(roots, id)
	for i := len(path) - 1; i >= 0; i-- {
		if path[i].Type == model.TypeRepository {
			return path[i]
		}
	}
	return nil
}

// Repositories returns every repository node in tree order.
func Repositories(roots []*model.TreeNode) []*model.TreeNode {
	var repos []*model.TreeNode
	Walk(roots, func(n *model.TreeNode, _ []*model.TreeNode) bool {
		if n.Type == model.TypeRepository {
			repos = append(repos, n)
			return false
		}
		return true
	})
	return repos
}

// Count returns the number of nodes in the tree.
func Count(roots []*model.TreeNode) int {
	count := 0
	Walk(roots, func(*model.TreeNode, []*model.TreeNode) bool {
		count++
		return true
	})
	return count
}
