package inventory

import (
	"path/filepath"
	"time"

	"cloudaudit/internal/logging"
	"cloudaudit/internal/report"
)

type sheet struct {
	name string
	rows interface{}
}

// writeOutputs writes rows to <prefix>_<ts>.csv and sheets to <prefix>_<ts>.xlsx
// in dir and returns the paths written
func writeOutputs(dir, prefix string, now time.Time, csvRows interface{}, rowCount int, sheets ...sheet) ([]string, error) {
	csvPath := filepath.Join(dir, report.TimestampedName(prefix, "csv", now))
	if err := report.WriteCSV(csvPath, csvRows); err != nil {
		return nil, err
	}
	logging.ReportWritten(csvPath, rowCount)

	xlsxPath := filepath.Join(dir, report.TimestampedName(prefix, "xlsx", now))
	wb := report.NewWorkbook()
	for _, s := range sheets {
		if err := wb.AddSheet(s.name, s.rows); err != nil {
			return nil, err
		}
	}
	if err := wb.SaveAs(xlsxPath); err != nil {
		return nil, err
	}
	logging.ReportWritten(xlsxPath, rowCount)

	return []string{csvPath, xlsxPath}, nil
}

// WriteEC2 writes ec2_inventory_<ts>.csv and .xlsx
func WriteEC2(dir string, rows []EC2Instance, now time.Time) ([]string, error) {
	return writeOutputs(dir, "ec2_inventory", now, rows, len(rows), sheet{"EC2", rows})
}

// WriteRDS writes rds_inventory_<ts>.csv and .xlsx
func WriteRDS(dir string, rows []DBInstance, now time.Time) ([]string, error) {
	return writeOutputs(dir, "rds_inventory", now, rows, len(rows), sheet{"RDS Inventory", rows})
}

// WriteS3 writes s3_inventory_<ts>.csv (buckets) and an s3_inventory_<ts>.xlsx
// workbook. With objects it also writes s3_objects_<ts>.csv and an Objects sheet.
func WriteS3(dir string, buckets []Bucket, objects []Object, includeObjects bool, now time.Time) ([]string, error) {
	sheets := []sheet{{"Buckets", buckets}}
	if includeObjects {
		sheets = append(sheets, sheet{"Objects", objects})
	}

	paths, err := writeOutputs(dir, "s3_inventory", now, buckets, len(buckets), sheets...)
	if err != nil {
		return nil, err
	}
	if !includeObjects {
		return paths, nil
	}

	objectsPath := filepath.Join(dir, report.TimestampedName("s3_objects", "csv", now))
	if err := report.WriteCSV(objectsPath, objects); err != nil {
		return nil, err
	}
	logging.ReportWritten(objectsPath, len(objects))
	return append(paths, objectsPath), nil
}

// WriteIAM writes iam_users_<ts>.csv and an .xlsx with Account, Users and AccessKeys sheets
func WriteIAM(dir string, inv *IAMInventory, now time.Time) ([]string, error) {
	return writeOutputs(dir, "iam_users", now, inv.Users, len(inv.Users),
		sheet{"Account", []AccountSummary{inv.Account}},
		sheet{"Users", inv.Users},
		sheet{"AccessKeys", inv.AccessKeys},
	)
}
