package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/arbor-sh/arbor/pkg/domain"
)

// loadCatalog reads a JSON array of records, falling back to a small built-in
// demo catalog when no path is given.
func loadCatalog(path string) ([]domain.Record, error) {
	if path == "" {
		return demoCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	var records []domain.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	return records, nil
}

func demoCatalog() []domain.Record {
	return []domain.Record{
		{ID: "srv-basic", Name: "Basic Server", Category: "Server", CPU: 4, RAM: 16, Storage: 500, Price: 800, Stock: 25},
		{ID: "srv-perf", Name: "Performance Server", Category: "Server", CPU: 16, RAM: 64, Storage: 1000, Price: 1900, Stock: 8},
		{ID: "srv-budget", Name: "Budget Server", Category: "Server", CPU: 2, RAM: 8, Storage: 250, Price: 450, Stock: 40},
		{ID: "sto-archive", Name: "Archive Array", Category: "Storage", CPU: 4, RAM: 16, Storage: 8000, Price: 1600, Stock: 12},
		{ID: "cmp-node", Name: "Compute Node", Category: "Compute", CPU: 32, RAM: 128, Storage: 500, Price: 3200, Stock: 4},
	}
}
