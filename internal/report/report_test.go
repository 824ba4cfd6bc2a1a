package report

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestTimestampedName(t *testing.T) {
	ts := time.Date(2024, 3, 7, 9, 5, 2, 0, time.UTC)
	assert.Equal(t, "aws_cost_audit_summary_20240307_090502.csv", TimestampedName("aws_cost_audit_summary", "csv", ts))
	assert.Equal(t, "codebuild_report_20240307_090502.json", TimestampedName("codebuild_report", "json", ts))
}

func TestWriteCSVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "findings.csv")
	in := Findings{
		{ResourceType: "EBS Volume", Name: "data", ResourceID: "vol-1", Details: "Size=100GiB, State=available, AZ=us-east-1a", Severity: SeverityHigh},
		{ResourceType: "Elastic IP", Name: "3.3.3.3", ResourceID: "eipalloc-1", Details: "Domain=vpc", Severity: SeverityHigh},
		{ResourceType: "RDS Instance", Name: "db, \"quoted\"", ResourceID: "db-1", Details: "postgres db.t3.micro Status=stopped Storage=20GiB", Severity: SeverityMedium},
	}

	require.NoError(t, WriteCSV(path, in))

	var out Findings
	require.NoError(t, ReadCSV(path, &out))
	assert.Equal(t, in, out)
}

func TestWriteCSVHeaderOnlyWhenEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")
	require.NoError(t, WriteCSV(path, Findings{}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "ResourceType,Name,ResourceId,Details,Severity\n", string(data))
}

func TestWriteJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	in := Findings{{ResourceType: "EC2 Instance", ResourceID: "i-1", Severity: SeverityMedium}}
	require.NoError(t, WriteJSON(path, in))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var out []map[string]string
	require.NoError(t, json.Unmarshal(data, &out))
	require.Len(t, out, 1)
	assert.Equal(t, "i-1", out[0]["ResourceId"])
	assert.Equal(t, "Medium", out[0]["Severity"])
}

func TestFindingsCounts(t *testing.T) {
	f := Findings{
		{ResourceType: "EBS Volume", Severity: SeverityHigh},
		{ResourceType: "EBS Volume", Severity: SeverityHigh},
		{ResourceType: "EBS Snapshot", Severity: SeverityMedium},
	}
	assert.Equal(t, map[string]int{"High": 2, "Medium": 1}, f.CountBySeverity())
	assert.Equal(t, []string{"High", "Medium"}, SortedKeys(f.CountBySeverity()))
}

func TestWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inventory.xlsx")
	wb := NewWorkbook()
	require.NoError(t, wb.AddSheet("Findings", Findings{
		{ResourceType: "EBS Volume", ResourceID: "vol-1", Severity: SeverityHigh},
	}))
	require.NoError(t, wb.AddSheet("Empty", Findings{}))
	require.NoError(t, wb.SaveAs(path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Findings", "Empty"}, f.GetSheetList())

	rows, err := f.GetRows("Findings")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"ResourceType", "Name", "ResourceId", "Details", "Severity"}, rows[0])
	assert.Equal(t, "vol-1", rows[1][2])

	rows, err = f.GetRows("Empty")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

type mockUploader struct {
	s3manageriface.UploaderAPI
	mock.Mock
}

func (m *mockUploader) UploadWithContext(ctx context.Context, input *s3manager.UploadInput, opts ...func(*s3manager.Uploader)) (*s3manager.UploadOutput, error) {
	body, _ := io.ReadAll(input.Body)
	args := m.Called(*input.Bucket, *input.Key, string(body))
	if out := args.Get(0); out != nil {
		return out.(*s3manager.UploadOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestUploaderUpload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "codebuild_report_20240101_000000.csv")
	require.NoError(t, os.WriteFile(path, []byte("a,b\n1,2\n"), 0644))

	api := &mockUploader{}
	api.On("UploadWithContext", "audit-bucket", "codebuild_report_20240101_000000.csv", "a,b\n1,2\n").
		Return(&s3manager.UploadOutput{}, nil)

	u := NewUploaderWithAPI(api, "audit-bucket")
	loc, err := u.Upload(context.Background(), path, "")
	require.NoError(t, err)
	assert.Equal(t, "s3://audit-bucket/codebuild_report_20240101_000000.csv", loc)
	api.AssertExpectations(t)
}

func TestUploaderUploadError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "r.csv")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	api := &mockUploader{}
	api.On("UploadWithContext", "b", "custom/key.csv", "x").Return(nil, errors.New("AccessDenied"))

	_, err := NewUploaderWithAPI(api, "b").Upload(context.Background(), path, "custom/key.csv")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "AccessDenied"))
}

func TestUploaderRequiresBucket(t *testing.T) {
	_, err := NewUploaderWithAPI(&mockUploader{}, "").Upload(context.Background(), "whatever", "")
	assert.EqualError(t, err, "S3 bucket not specified")
}
