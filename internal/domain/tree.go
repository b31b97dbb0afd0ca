package domain

import (
	"encoding/json"
	"time"
)

// NodeKind discriminates the variants of Node.
type NodeKind string

const (
	NodeKindFolder   NodeKind = "folder"
	NodeKindDocument NodeKind = "document"
)

// Node is an entry of the digitized document tree. It is either a *Folder or
// a *Document; callers switch on the concrete type.
type Node interface {
	NodeID() string
	NodeName() string
	Kind() NodeKind
	isNode()
}

// Folder groups other nodes.
type Folder struct {
	ID       string `json:"id"`
	ParentID string `json:"parent_id,omitempty"`
	Name     string `json:"name"`
	Children []Node `json:"children,omitempty"`
}

// DocumentMetadata describes a digitized document.
type DocumentMetadata struct {
	PageCount    int       `json:"page_count,omitempty"`
	FileSize     int64     `json:"file_size,omitempty"`
	DocumentType string    `json:"document_type,omitempty"`
	Modality     string    `json:"modality,omitempty"`
	Municipality string    `json:"municipality,omitempty"`
	ScannedAt    time.Time `json:"scanned_at,omitempty"`
}

// Document is a leaf node holding a digitized file and its OCR text.
type Document struct {
	ID       string           `json:"id"`
	ParentID string           `json:"parent_id,omitempty"`
	Name     string           `json:"name"`
	Locator  string           `json:"locator"`
	OCRText  string           `json:"ocr_text,omitempty"`
	Metadata DocumentMetadata `json:"metadata"`
}

func (f *Folder) NodeID() string   { return f.ID }
func (f *Folder) NodeName() string { return f.Name }
func (f *Folder) Kind() NodeKind   { return NodeKindFolder }
func (*Folder) isNode()            {}

func (d *Document) NodeID() string   { return d.ID }
func (d *Document) NodeName() string { return d.Name }
func (d *Document) Kind() NodeKind   { return NodeKindDocument }
func (*Document) isNode()            {}

// MarshalJSON adds the kind discriminator.
func (f *Folder) MarshalJSON() ([]byte, error) {
	type folder Folder
	return json.Marshal(struct {
		Kind NodeKind `json:"kind"`
		*folder
	}{NodeKindFolder, (*folder)(f)})
}

// MarshalJSON adds the kind discriminator.
func (d *Document) MarshalJSON() ([]byte, error) {
	type document Document
	return json.Marshal(struct {
		Kind NodeKind `json:"kind"`
		*document
	}{NodeKindDocument, (*document)(d)})
}

// Validate checks the document's required fields.
func (d *Document) Validate() error {
	if d.ID == "" {
		return &ValidationError{Field: "id", Message: "document ID is required"}
	}
	if d.Locator == "" {
		return &ValidationError{Field: "locator", Message: "locator is required"}
	}
	if d.Metadata.PageCount < 0 {
		return &ValidationError{Field: "page_count", Message: "page count cannot be negative"}
	}
	if d.Metadata.FileSize < 0 {
		return &ValidationError{Field: "file_size", Message: "file size cannot be negative"}
	}
	return nil
}

// WalkDocuments calls fn for every document reachable from n, depth first.
func WalkDocuments(n Node, fn func(*Document)) {
	switch v := n.(type) {
	case *Folder:
		for _, child := range v.Children {
			WalkDocuments(child, fn)
		}
	case *Document:
		fn(v)
	}
}
