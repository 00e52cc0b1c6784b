package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/semtab/semtab-cli/internal/table"
)

// Dataset is one entry of the dataset collection.
type Dataset struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Description      string `json:"description,omitempty"`
	NTables          int    `json:"nTables,omitempty"`
	LastModifiedDate string `json:"lastModifiedDate,omitempty"`
}

// collection is the backend's list envelope: the items plus paging metadata.
type collection[T any] struct {
	Collection []T            `json:"collection"`
	Meta       map[string]any `json:"meta,omitempty"`
}

// ListDatasets retrieves all datasets visible to the authenticated user.
func (c *Client) ListDatasets(ctx context.Context) ([]Dataset, error) {
	var resp collection[Dataset]
	if err := c.call(ctx, http.MethodGet, "/dataset", nil, nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to list datasets: %w", err)
	}
	return resp.Collection, nil
}

// AddDataset creates a dataset seeded with the frame's rows uploaded as CSV.
// It returns the new dataset id.
func (c *Client) AddDataset(ctx context.Context, name string, frame *table.Frame) (string, error) {
	if name == "" {
		return "", ValidationError{Message: "dataset name is required"}
	}
	csvData, err := frame.CSVBytes()
	if err != nil {
		return "", fmt.Errorf("failed to encode dataset csv: %w", err)
	}

	var resp struct {
		Datasets []Dataset `json:"datasets"`
	}
	if err := c.upload(ctx, "/dataset", name, name+".csv", csvData, &resp); err != nil {
		return "", fmt.Errorf("failed to add dataset: %w", err)
	}
	if len(resp.Datasets) == 0 || resp.Datasets[0].ID == "" {
		return "", fmt.Errorf("backend returned no dataset id")
	}
	return resp.Datasets[0].ID, nil
}

// DeleteDataset removes a dataset and all its tables.
func (c *Client) DeleteDataset(ctx context.Context, datasetID string) error {
	if datasetID == "" {
		return ValidationError{Message: "dataset id is required"}
	}
	if err := c.call(ctx, http.MethodDelete, "/dataset/"+datasetID, nil, nil, nil); err != nil {
		return fmt.Errorf("failed to delete dataset %s: %w", datasetID, err)
	}
	return nil
}
