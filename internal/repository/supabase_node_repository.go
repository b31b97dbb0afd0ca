package repository

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"pdf-page-viewer/internal/domain"
)

const nodesTable = "document_nodes"

// SupabaseNodeRepository implements domain.NodeRepository over the
// document_nodes table.
type SupabaseNodeRepository struct {
	supabaseClient domain.SupabaseClient
	logger         domain.Logger
}

// NewSupabaseNodeRepository creates a new Supabase node repository
func NewSupabaseNodeRepository(supabaseClient domain.SupabaseClient, logger domain.Logger) domain.NodeRepository {
	return &SupabaseNodeRepository{
		supabaseClient: supabaseClient,
		logger:         logger,
	}
}

// nodeRow is a document_nodes row. Older rows use Spanish type names.
type nodeRow struct {
	ID       string          `json:"id"`
	ParentID *string         `json:"parent_id"`
	Name     string          `json:"name"`
	Type     string          `json:"type"`
	Locator  string          `json:"locator"`
	OCRText  string          `json:"ocr_text"`
	Metadata json.RawMessage `json:"metadata"`
}

// GetNode returns the node with id. Folders are returned without children.
func (r *SupabaseNodeRepository) GetNode(id string) (domain.Node, error) {
	rows, err := r.query("id", id)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, domain.ErrNodeNotFound
	}
	return decodeNode(rows[0])
}

// GetChildren returns the direct children of folderID ordered folders first,
// then by name.
func (r *SupabaseNodeRepository) GetChildren(folderID string) ([]domain.Node, error) {
	parent, err := r.GetNode(folderID)
	if err != nil {
		return nil, err
	}
	if parent.Kind() != domain.NodeKindFolder {
		return nil, &domain.ValidationError{Field: "id", Message: "node is not a folder"}
	}

	rows, err := r.query("parent_id", folderID)
	if err != nil {
		return nil, err
	}
	nodes, err := decodeNodes(rows)
	if err != nil {
		return nil, err
	}
	sortNodes(nodes)
	return nodes, nil
}

func (r *SupabaseNodeRepository) query(column, value string) ([]nodeRow, error) {
	client := r.supabaseClient.DB()
	if client == nil {
		return nil, fmt.Errorf("supabase client not initialized")
	}

	data, _, err := client.From(nodesTable).
		Select("*", "", false).
		Eq(column, value).
		Execute()
	if err != nil {
		r.logger.Error("Failed to query document nodes", err, column, value)
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}

	var rows []nodeRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return rows, nil
}

func decodeNodes(rows []nodeRow) ([]domain.Node, error) {
	nodes := make([]domain.Node, 0, len(rows))
	for _, row := range rows {
		n, err := decodeNode(row)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func decodeNode(row nodeRow) (domain.Node, error) {
	parentID := ""
	if row.ParentID != nil {
		parentID = *row.ParentID
	}

	switch strings.ToLower(strings.TrimSpace(row.Type)) {
	case "folder", "carpeta":
		return &domain.Folder{ID: row.ID, ParentID: parentID, Name: row.Name}, nil

	case "document", "documento":
		doc := &domain.Document{
			ID:       row.ID,
			ParentID: parentID,
			Name:     row.Name,
			Locator:  row.Locator,
			OCRText:  row.OCRText,
		}
		if len(row.Metadata) > 0 && string(row.Metadata) != "null" {
			if err := json.Unmarshal(row.Metadata, &doc.Metadata); err != nil {
				return nil, fmt.Errorf("node %s: invalid metadata: %w", row.ID, err)
			}
		}
		return doc, nil

	default:
		return nil, fmt.Errorf("node %s: %w %q", row.ID, domain.ErrUnknownNodeType, row.Type)
	}
}

func sortNodes(nodes []domain.Node) {
	sort.SliceStable(nodes, func(i, j int) bool {
		fi := nodes[i].Kind() == domain.NodeKindFolder
		fj := nodes[j].Kind() == domain.NodeKindFolder
		if fi != fj {
			return fi
		}
		return nodes[i].NodeName() < nodes[j].NodeName()
	})
}
