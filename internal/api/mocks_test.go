package api

import (
	"alcyxob/gym-booking/internal/domain"
	"alcyxob/gym-booking/internal/service"
	"context"

	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type mockAuthService struct{ mock.Mock }

func (m *mockAuthService) Register(ctx context.Context, name, email, password string, gymID primitive.ObjectID) (*domain.User, error) {
	args := m.Called(ctx, name, email, password, gymID)
	u, _ := args.Get(0).(*domain.User)
	return u, args.Error(1)
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	args := m.Called(ctx, email, password)
	u, _ := args.Get(1).(*domain.User)
	return args.String(0), u, args.Error(2)
}

func (m *mockAuthService) GetJWTSecret() string { return testSecret }

type mockBookingService struct{ mock.Mock }

func (m *mockBookingService) AttemptBooking(ctx context.Context, req service.BookingRequest) (*service.BookingResult, error) {
	args := m.Called(ctx, req)
	r, _ := args.Get(0).(*service.BookingResult)
	return r, args.Error(1)
}

func (m *mockBookingService) ForceBooking(ctx context.Context, actor domain.Actor, req service.BookingRequest) (*service.BookingResult, error) {
	args := m.Called(ctx, actor, req)
	r, _ := args.Get(0).(*service.BookingResult)
	return r, args.Error(1)
}

func (m *mockBookingService) CancelBooking(ctx context.Context, actor domain.Actor, gymID, attendanceID primitive.ObjectID) (*service.CancelResult, error) {
	args := m.Called(ctx, actor, gymID, attendanceID)
	r, _ := args.Get(0).(*service.CancelResult)
	return r, args.Error(1)
}

func (m *mockBookingService) ReconcileWaitlist(ctx context.Context, gymID, classID primitive.ObjectID, date string) (int, error) {
	args := m.Called(ctx, gymID, classID, date)
	return args.Int(0), args.Error(1)
}

func (m *mockBookingService) ListSessionRoster(ctx context.Context, gymID, classID primitive.ObjectID, date string, page, limit int) (*service.AttendancePage, error) {
	args := m.Called(ctx, gymID, classID, date, page, limit)
	p, _ := args.Get(0).(*service.AttendancePage)
	return p, args.Error(1)
}

func (m *mockBookingService) ListMemberAttendance(ctx context.Context, actor domain.Actor, gymID, memberID primitive.ObjectID, page, limit int) (*service.AttendancePage, error) {
	args := m.Called(ctx, actor, gymID, memberID, page, limit)
	p, _ := args.Get(0).(*service.AttendancePage)
	return p, args.Error(1)
}

type mockCheckInService struct{ mock.Mock }

func (m *mockCheckInService) CheckIn(ctx context.Context, gymID, attendanceID, memberID primitive.ObjectID, programID string) error {
	return m.Called(ctx, gymID, attendanceID, memberID, programID).Error(0)
}

type mockMemberService struct{ mock.Mock }

func (m *mockMemberService) Search(ctx context.Context, gymID primitive.ObjectID, query string, limit int) ([]domain.User, error) {
	args := m.Called(ctx, gymID, query, limit)
	u, _ := args.Get(0).([]domain.User)
	return u, args.Error(1)
}

type mockExportService struct{ mock.Mock }

func (m *mockExportService) Export(ctx context.Context, gymID, classID primitive.ObjectID, date string) (*service.RosterExport, error) {
	args := m.Called(ctx, gymID, classID, date)
	r, _ := args.Get(0).(*service.RosterExport)
	return r, args.Error(1)
}
