package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// DiffReport is the serialized comparison result. Only tables with at least
// one difference are listed.
type DiffReport struct {
	Tables []ReportTable `json:"report_table_list"`
}

type ReportTable struct {
	TableName string   `json:"table_name"`
	Lines     []string `json:"report_list"`
}

const reportTimeLayout = "2006-01-02 15:04"

func reportFileName(now time.Time) string {
	return "report_" + now.Format(reportTimeLayout) + ".json"
}

// writeReport encodes the report as indented JSON into dir and returns the
// path written. The file is replaced atomically.
func writeReport(dir string, report DiffReport, now time.Time) (string, error) {
	if report.Tables == nil {
		report.Tables = []ReportTable{}
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", &SerializationError{Err: err}
	}
	data = append(data, '\n')

	if dir == "" {
		dir = "."
	}
	path := filepath.Join(dir, reportFileName(now))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", &IOError{Path: path, Err: err}
	}
	if err := writeFileAtomic(path, data, 0o644); err != nil {
		return "", &IOError{Path: path, Err: err}
	}
	return path, nil
}

// writeFileAtomic writes data to a temp file next to path and renames it.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
