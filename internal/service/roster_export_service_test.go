package service

import (
	"alcyxob/gym-booking/internal/storage"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type mockObjectStorage struct {
	mock.Mock
	uploaded string
}

func (m *mockObjectStorage) PutObject(ctx context.Context, key, contentType string, body io.Reader, size int64) error {
	data, _ := io.ReadAll(body)
	m.uploaded = string(data)
	args := m.Called(ctx, key, contentType, size)
	return args.Error(0)
}

func (m *mockObjectStorage) GeneratePresignedDownloadURL(ctx context.Context, key string, expires time.Duration) (string, error) {
	args := m.Called(ctx, key, expires)
	return args.String(0), args.Error(1)
}

func (m *mockObjectStorage) DeleteObject(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func TestRosterExport_UploadsCSV(t *testing.T) {
	f := newFixture(t, 1)
	f.book(t, f.store.PutUser(defaultMember(f, "=cmd|calc", "a@example.com")))
	f.book(t, f.member("bob"))

	store := &mockObjectStorage{}
	keyPrefix := "exports/" + f.gymID.Hex() + "/" + f.classID.Hex() + "/" + testDate + "/"
	store.On("PutObject", mock.Anything, mock.MatchedBy(func(k string) bool {
		return strings.HasPrefix(k, keyPrefix) && strings.HasSuffix(k, ".csv")
	}), "text/csv", mock.AnythingOfType("int64")).Return(nil)
	store.On("GeneratePresignedDownloadURL", mock.Anything, mock.Anything, 5*time.Minute).
		Return("https://s3.example.com/signed", nil)

	svc := NewRosterExportService(f.store.Attendance(), f.store.Classes(), store, 5*time.Minute)
	out, err := svc.Export(context.Background(), f.gymID, f.classID, testDate)
	require.NoError(t, err)

	assert.Equal(t, "https://s3.example.com/signed", out.DownloadURL)
	assert.Equal(t, 2, out.Rows)
	store.AssertExpectations(t)

	rows, err := csv.NewReader(strings.NewReader(store.uploaded)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "attendance_id", rows[0][0])
	assert.Equal(t, "'=cmd|calc", rows[1][2], "formula-looking names are neutralised")
	assert.Equal(t, "booked", rows[1][4])
	assert.Equal(t, "waitlisted", rows[2][4])
}

func TestRosterExport_DeletesObjectWhenSigningFails(t *testing.T) {
	f := newFixture(t, 5)
	store := &mockObjectStorage{}
	store.On("PutObject", mock.Anything, mock.Anything, "text/csv", mock.Anything).Return(nil)
	store.On("GeneratePresignedDownloadURL", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("no creds"))
	store.On("DeleteObject", mock.Anything, mock.Anything).Return(nil)

	svc := NewRosterExportService(f.store.Attendance(), f.store.Classes(), store, 0)
	_, err := svc.Export(context.Background(), f.gymID, f.classID, testDate)
	assert.Error(t, err)
	store.AssertCalled(t, "DeleteObject", mock.Anything, mock.Anything)
}

func TestRosterExport_Unavailable(t *testing.T) {
	f := newFixture(t, 5)
	svc := NewRosterExportService(f.store.Attendance(), f.store.Classes(), nil, 0)
	_, err := svc.Export(context.Background(), f.gymID, f.classID, testDate)
	assert.ErrorIs(t, err, storage.ErrStorageUnavailable)
}

func TestRosterExport_WrongGym(t *testing.T) {
	f := newFixture(t, 5)
	svc := NewRosterExportService(f.store.Attendance(), f.store.Classes(), &mockObjectStorage{}, 0)
	_, err := svc.Export(context.Background(), primitive.NewObjectID(), f.classID, testDate)
	assert.ErrorIs(t, err, ErrClassNotFound)
}
