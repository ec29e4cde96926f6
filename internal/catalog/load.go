package catalog

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/medcoding/medcoding/internal/domain/coding"
)

// LoadDiagnosesJSON reads a diagnosis table from a JSON array file.
func LoadDiagnosesJSON(path string) ([]*coding.DiagnosisCode, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read diagnosis catalog: %w", err)
	}
	var diagnoses []*coding.DiagnosisCode
	if err := json.Unmarshal(data, &diagnoses); err != nil {
		return nil, fmt.Errorf("parse diagnosis catalog: %w", err)
	}
	return diagnoses, nil
}

// LoadPairEditsJSON reads an NCCI pair edit table from a JSON array file.
func LoadPairEditsJSON(path string) ([]*coding.PairEdit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pair edit catalog: %w", err)
	}
	var pairs []*coding.PairEdit
	if err := json.Unmarshal(data, &pairs); err != nil {
		return nil, fmt.Errorf("parse pair edit catalog: %w", err)
	}
	return pairs, nil
}

// LoadModifiersCSV reads a modifier table from a CSV file with a
// "code,title,reason" header row.
func LoadModifiersCSV(path string) ([]*coding.ModifierEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open modifier catalog: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 3

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read modifier catalog header: %w", err)
	}
	if header[0] != "code" || header[1] != "title" || header[2] != "reason" {
		return nil, fmt.Errorf("modifier catalog: expected header code,title,reason, got %v", header)
	}

	var entries []*coding.ModifierEntry
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read modifier catalog: %w", err)
		}
		entries = append(entries, &coding.ModifierEntry{
			Code:   record[0],
			Title:  record[1],
			Reason: record[2],
		})
	}
	return entries, nil
}
