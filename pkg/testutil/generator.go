// Package testutil builds deterministic resource trees for tests.
//
// Trees follow the shape the companion API produces: organizations with
// shallow repositories (hasChildren, not loaded), and separately generated
// detail categories for a repository that a fake fetcher can return.
package testutil

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/vanderheijden86/ghtree/pkg/model"
	"pgregory.net/rapid"
)

// GeneratorConfig controls tree generation.
type GeneratorConfig struct {
	Seed             int64     // 0 = use current time
	Orgs             int       // organizations per forest (default 2)
	ReposPerOrg      int       // repositories per organization (default 3)
	ItemsPerCategory int       // items per detail category (default 2)
	BaseTime         time.Time // timestamps count back from here
}

// DefaultConfig returns a small deterministic config.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		Seed:             42,
		Orgs:             2,
		ReposPerOrg:      3,
		ItemsPerCategory: 2,
		BaseTime:         time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

// Generator creates tree fixtures.
type Generator struct {
	cfg GeneratorConfig
	rng *rand.Rand
}

// New creates a Generator with the given config.
func New(cfg GeneratorConfig) *Generator {
	def := DefaultConfig()
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if cfg.Orgs <= 0 {
		cfg.Orgs = def.Orgs
	}
	if cfg.ReposPerOrg <= 0 {
		cfg.ReposPerOrg = def.ReposPerOrg
	}
	if cfg.ItemsPerCategory <= 0 {
		cfg.ItemsPerCategory = def.ItemsPerCategory
	}
	if cfg.BaseTime.IsZero() {
		cfg.BaseTime = def.BaseTime
	}
	return &Generator{cfg: cfg, rng: rand.New(rand.NewSource(seed))}
}

// NewDefault creates a Generator with DefaultConfig.
func NewDefault() *Generator {
	return New(DefaultConfig())
}

var statuses = map[model.NodeType][]string{
	model.TypeWorkflow:    {"active", "disabled_manually"},
	model.TypeWorkflowRun: {"success", "failure", "in_progress"},
	model.TypeRunner:      {"online", "offline"},
	model.TypeBranch:      {""},
	model.TypePullRequest: {"open", "closed"},
	model.TypeIssue:       {"open", "closed"},
}

// Forest returns cfg.Orgs shallow organizations named org0, org1, ...
func (g *Generator) Forest() []*model.TreeNode {
	roots := make([]*model.TreeNode, g.cfg.Orgs)
	for i := range roots {
		owner := fmt.Sprintf("org%d", i)
		repos := make([]*model.TreeNode, g.cfg.ReposPerOrg)
		for j := range repos {
			repos[j] = Repo(owner, fmt.Sprintf("repo%d", j))
		}
		roots[i] = Org(owner, repos...)
	}
	return roots
}

// Details returns all six categories for a repository with
// cfg.ItemsPerCategory items each, the way the repo-details endpoint does.
func (g *Generator) Details(owner, repo string) []*model.TreeNode {
	counts := make(map[model.NodeType]int)
	for _, c := range model.Categories() {
		counts[c] = g.cfg.ItemsPerCategory
	}
	return g.DetailsWith(owner, repo, counts)
}

// DetailsWith returns categories with the given item counts. Categories with
// a zero count are omitted.
func (g *Generator) DetailsWith(owner, repo string, counts map[model.NodeType]int) []*model.TreeNode {
	var cats []*model.TreeNode
	for _, c := range model.Categories() {
		n := counts[c]
		if n == 0 {
			continue
		}
		items := make([]*model.TreeNode, n)
		for i := range items {
			items[i] = g.item(c.ItemType(), owner, repo, i)
		}
		cats = append(cats, Category(c, owner, repo, items...))
	}
	return cats
}

func (g *Generator) item(typ model.NodeType, owner, repo string, i int) *model.TreeNode {
	opts := statuses[typ]
	created := g.cfg.BaseTime.Add(-time.Duration(g.rng.Intn(24*30)) * time.Hour)
	updated := created.Add(time.Duration(g.rng.Intn(48)) * time.Hour)
	n := Item(typ, owner, repo, fmt.Sprintf("%d", i+1), fmt.Sprintf("%s %d", typ, i+1))
	n.Status = opts[g.rng.Intn(len(opts))]
	n.Metadata["created_at"] = created.Format(time.RFC3339)
	n.Metadata["updated_at"] = updated.Format(time.RFC3339)
	return n
}

// Org builds an organization node with the given repositories.
func Org(owner string, repos ...*model.TreeNode) *model.TreeNode {
	children := make([]*model.TreeNode, len(repos))
	copy(children, repos)
	return &model.TreeNode{
		ID:          model.OrgID(owner),
		Name:        owner,
		Type:        model.TypeOrganization,
		URL:         "https://github.com/" + owner,
		Metadata:    map[string]any{"owner": owner, "repo_count": len(repos)},
		Children:    children,
		HasChildren: len(repos) > 0,
		IsLoaded:    true,
	}
}

// Repo builds a shallow, unloaded repository node.
func Repo(owner, name string) *model.TreeNode {
	return &model.TreeNode{
		ID:          model.RepoID(owner, name),
		Name:        name,
		Type:        model.TypeRepository,
		URL:         fmt.Sprintf("https://github.com/%s/%s", owner, name),
		Metadata:    map[string]any{"owner": owner, "language": "Go", "private": false},
		HasChildren: true,
	}
}

// LoadedRepo builds a repository whose details are already attached.
func LoadedRepo(owner, name string, categories ...*model.TreeNode) *model.TreeNode {
	r := Repo(owner, name)
	r.Children = append([]*model.TreeNode{}, categories...)
	r.IsLoaded = true
	return r
}

// Category builds a loaded detail category named "<Label> (<n>)".
func Category(cat model.NodeType, owner, repo string, items ...*model.TreeNode) *model.TreeNode {
	children := append([]*model.TreeNode{}, items...)
	return &model.TreeNode{
		ID:          model.CategoryID(cat, owner, repo),
		Name:        fmt.Sprintf("%s (%d)", cat.CategoryLabel(), len(items)),
		Type:        cat,
		Metadata:    map[string]any{"owner": owner, "repo": repo},
		Children:    children,
		HasChildren: len(items) > 0,
		IsLoaded:    true,
	}
}

// Item builds a leaf item.
func Item(typ model.NodeType, owner, repo, key, name string) *model.TreeNode {
	return &model.TreeNode{
		ID:       model.ItemID(typ, owner, repo, key),
		Name:     name,
		Type:     typ,
		URL:      fmt.Sprintf("https://github.com/%s/%s/%s/%s", owner, repo, typ, key),
		Metadata: map[string]any{"owner": owner, "repo": repo},
		Children: []*model.TreeNode{},
	}
}

// Acme returns organization "acme" holding one unloaded repository
// "widgets".
func Acme() []*model.TreeNode {
	return []*model.TreeNode{Org("acme", Repo("acme", "widgets"))}
}

// RapidForest draws a small random forest with unique ids. Repositories are
// randomly loaded or not, enabled or not, and loaded ones carry random
// categories.
func RapidForest(t *rapid.T) []*model.TreeNode {
	orgCount := rapid.IntRange(0, 3).Draw(t, "orgs")
	roots := make([]*model.TreeNode, orgCount)
	for i := range roots {
		owner := fmt.Sprintf("o%d", i)
		repoCount := rapid.IntRange(0, 4).Draw(t, "repos")
		repos := make([]*model.TreeNode, repoCount)
		for j := range repos {
			name := fmt.Sprintf("r%d", j)
			var repo *model.TreeNode
			if rapid.Bool().Draw(t, "loaded") {
				var cats []*model.TreeNode
				for _, c := range model.Categories() {
					n := rapid.IntRange(0, 3).Draw(t, "items")
					if n == 0 {
						continue
					}
					items := make([]*model.TreeNode, n)
					for k := range items {
						items[k] = Item(c.ItemType(), owner, name, fmt.Sprint(k),
							rapid.SampledFrom([]string{"bug", "fix", "main", "CI", "deploy"}).Draw(t, "name"))
						items[k].Status = rapid.SampledFrom([]string{"", "open", "closed", "success"}).Draw(t, "status")
					}
					cats = append(cats, Category(c, owner, name, items...))
				}
				repo = LoadedRepo(owner, name, cats...)
			} else {
				repo = Repo(owner, name)
			}
			switch rapid.IntRange(0, 2).Draw(t, "enabled") {
			case 1:
				repo.Enabled = model.Bool(true)
			case 2:
				repo.Enabled = model.Bool(false)
			}
			repos[j] = repo
		}
		roots[i] = Org(owner, repos...)
	}
	return roots
}
