package service

import (
	"alcyxob/gym-booking/internal/domain"
	"alcyxob/gym-booking/internal/repository"
	"alcyxob/gym-booking/internal/storage"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const exportContentType = "text/csv"

// RosterExport describes an uploaded roster file.
type RosterExport struct {
	ObjectKey   string    `json:"objectKey"`
	DownloadURL string    `json:"downloadUrl"`
	Rows        int       `json:"rows"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// --- Service Interface ---
type RosterExportService interface {
	Export(ctx context.Context, gymID, classID primitive.ObjectID, date string) (*RosterExport, error)
}

// rosterExportService implements the RosterExportService interface.
type rosterExportService struct {
	attendance repository.AttendanceRepository
	classes    repository.ClassRepository
	store      storage.ObjectStorage // nil when no bucket is configured
	expiry     time.Duration
}

// NewRosterExportService creates a new instance of rosterExportService.
func NewRosterExportService(
	attendance repository.AttendanceRepository,
	classes repository.ClassRepository,
	store storage.ObjectStorage,
	expiry time.Duration,
) RosterExportService {
	if expiry <= 0 {
		expiry = storage.DefaultPresignedURLExpiry
	}
	return &rosterExportService{attendance: attendance, classes: classes, store: store, expiry: expiry}
}

// Export writes the dated session's roster as CSV to object storage and
// returns a short-lived download link.
func (s *rosterExportService) Export(ctx context.Context, gymID, classID primitive.ObjectID, date string) (*RosterExport, error) {
	// 1. Validate Inputs
	if s.store == nil {
		return nil, storage.ErrStorageUnavailable
	}
	if _, err := domain.ParseSessionDate(date); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	class, err := s.classes.GetByID(ctx, classID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrClassNotFound
		}
		return nil, err
	}
	if class.GymID != gymID {
		return nil, ErrClassNotFound
	}

	// 2. Read the whole roster in FIFO order (cancelled rows included)
	records, err := s.readRoster(ctx, classID, date)
	if err != nil {
		return nil, err
	}

	// 3. Render
	body, err := renderRosterCSV(records)
	if err != nil {
		return nil, err
	}

	// 4. Upload and sign
	key := fmt.Sprintf("exports/%s/%s/%s/%s.csv", gymID.Hex(), classID.Hex(), date, uuid.NewString())
	if err := s.store.PutObject(ctx, key, exportContentType, bytes.NewReader(body), int64(len(body))); err != nil {
		return nil, fmt.Errorf("upload roster export: %w", err)
	}
	url, err := s.store.GeneratePresignedDownloadURL(ctx, key, s.expiry)
	if err != nil {
		// Nobody can reach the file without a link; don't leave it behind.
		_ = s.store.DeleteObject(ctx, key)
		return nil, fmt.Errorf("sign roster export: %w", err)
	}

	log.Printf("INFO: exported %d roster rows for class %s on %s to %s", len(records), classID.Hex(), date, key)
	return &RosterExport{
		ObjectKey:   key,
		DownloadURL: url,
		Rows:        len(records),
		ExpiresAt:   time.Now().UTC().Add(s.expiry),
	}, nil
}

func (s *rosterExportService) readRoster(ctx context.Context, classID primitive.ObjectID, date string) ([]domain.Attendance, error) {
	var all []domain.Attendance
	for page := 1; ; page++ {
		items, total, err := s.attendance.ListBySession(ctx, classID, date, repository.Page{Page: page, Limit: maxPageLimit})
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
		if len(items) == 0 || int64(len(all)) >= total {
			break
		}
	}
	return all, nil
}

var rosterCSVHeader = []string{
	"attendance_id", "member_id", "member_name", "member_email", "status", "channel",
	"forced", "booked_at", "promoted_at", "checked_in_at", "cancelled_at",
}

func renderRosterCSV(records []domain.Attendance) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(rosterCSVHeader); err != nil {
		return nil, err
	}
	for _, a := range records {
		row := []string{
			a.ID.Hex(),
			a.MemberID.Hex(),
			sanitizeCell(a.MemberName),
			sanitizeCell(a.MemberEmail),
			string(a.Status),
			string(a.Channel),
			fmt.Sprintf("%t", a.Forced),
			a.BookedAt.Format(time.RFC3339),
			formatOptional(a.PromotedAt),
			formatOptional(a.CheckedInAt),
			formatOptional(a.CancelledAt),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func formatOptional(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

// sanitizeCell stops spreadsheet apps from evaluating member-supplied text as a formula.
func sanitizeCell(s string) string {
	if s != "" && strings.ContainsRune("=+-@", rune(s[0])) {
		return "'" + s
	}
	return s
}
