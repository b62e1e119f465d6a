package model

import (
	json "github.com/goccy/go-json"
)

// treeNodeWire is the wire shape of a TreeNode. Metadata is carried as raw
// JSON and children go through TreeNode's own codec, so the encoder never
// compiles a self-referencing struct that holds a map.
type treeNodeWire struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Type        NodeType        `json:"type"`
	Status      string          `json:"status,omitempty"`
	URL         string          `json:"url,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	Children    []*TreeNode     `json:"children"`
	HasChildren bool            `json:"hasChildren,omitempty"`
	IsLoaded    bool            `json:"isLoaded,omitempty"`
	Enabled     *bool           `json:"enabled,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (n TreeNode) MarshalJSON() ([]byte, error) {
	w := treeNodeWire{
		ID:          n.ID,
		Name:        n.Name,
		Type:        n.Type,
		Status:      n.Status,
		URL:         n.URL,
		Children:    n.Children,
		HasChildren: n.HasChildren,
		IsLoaded:    n.IsLoaded,
		Enabled:     n.Enabled,
	}
	if len(n.Metadata) > 0 {
		meta, err := json.Marshal(n.Metadata)
		if err != nil {
			return nil, err
		}
		w.Metadata = meta
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler. A null or missing children
// field decodes to nil (unknown); [] decodes to an empty slice.
func (n *TreeNode) UnmarshalJSON(data []byte) error {
	var w treeNodeWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	var meta map[string]any
	if len(w.Metadata) > 0 && string(w.Metadata) != "null" {
		if err := json.Unmarshal(w.Metadata, &meta); err != nil {
			return err
		}
	}
	*n = TreeNode{
		ID:          w.ID,
		Name:        w.Name,
		Type:        w.Type,
		Status:      w.Status,
		URL:         w.URL,
		Metadata:    meta,
		Children:    w.Children,
		HasChildren: w.HasChildren,
		IsLoaded:    w.IsLoaded,
		Enabled:     w.Enabled,
	}
	return nil
}
