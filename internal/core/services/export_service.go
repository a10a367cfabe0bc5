package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"accredit-dashboard/internal/core/domain"
)

// exportDateLayout matches the short date shown in the table, e.g. "Mar 15, 2024"
const exportDateLayout = "Jan 2, 2006"

// Export is a rendered CSV report
type Export struct {
	Filename string
	Rows     int
	Data     []byte
}

// ExportService renders record tables as CSV
type ExportService struct {
	records *RecordService
	loc     *time.Location
}

func NewExportService(records *RecordService, loc *time.Location) *ExportService {
	if loc == nil {
		loc = time.UTC
	}
	return &ExportService{records: records, loc: loc}
}

// Filename is the download name of a report
func Filename(kind domain.RecordKind) string {
	if kind == domain.FacilityKind {
		return "facility_report.csv"
	}
	return "healthcare-professional_report.csv"
}

// Export renders the collection of kind narrowed by the same name search as the table
func (s *ExportService) Export(ctx context.Context, session *domain.Session, kind domain.RecordKind, search string) (*Export, error) {
	records, err := s.records.Fetch(ctx, session, kind)
	if err != nil {
		return nil, err
	}
	records = FilterByName(records, search)

	var buf bytes.Buffer
	if err := WriteCSV(&buf, kind, records, s.loc); err != nil {
		return nil, err
	}

	return &Export{
		Filename: Filename(kind),
		Rows:     len(records),
		Data:     buf.Bytes(),
	}, nil
}

// Header returns the CSV columns for kind
func Header(kind domain.RecordKind) []string {
	category := "Specialization"
	if kind == domain.FacilityKind {
		category = "Level"
	}
	return []string{
		"ID",
		"License Number",
		kind.Label(),
		category,
		"Address",
		"Contact Number",
		"Email",
		"Send Date",
		"Received Date",
		"Claim Status",
		"Accreditation Status",
		"Date Claimed",
		"Received By",
	}
}

// WriteCSV writes a header line and one line per record
func WriteCSV(w io.Writer, kind domain.RecordKind, records []domain.Accreditable, loc *time.Location) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header(kind)); err != nil {
		return err
	}

	for _, rec := range records {
		base := rec.Base()
		receivedBy := ""
		if base.ReceivedBy != nil {
			receivedBy = *base.ReceivedBy
		}
		row := []string{
			base.ID.String(),
			base.LicenceNumber,
			base.Name,
			rec.Category(),
			base.Address,
			base.ContactNumber,
			base.Email,
			formatDate(base.SendDate, loc),
			formatDate(base.ReceivedDate, loc),
			base.Status.Label(),
			base.AccreditationStatus.Label(),
			formatDate(base.DateClaimed, loc),
			receivedBy,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write record %s: %w", base.ID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatDate(ts domain.Timestamp, loc *time.Location) string {
	if ts.Malformed() {
		return ts.Raw
	}
	if !ts.Valid {
		return ""
	}
	return ts.Time.In(loc).Format(exportDateLayout)
}
