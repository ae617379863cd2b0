package service

import (
	"alcyxob/gym-booking/internal/domain"
	"alcyxob/gym-booking/internal/repository"
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	minSearchQueryLength = 2
	defaultSearchLimit   = 20
)

// --- Service Interface ---
type MemberService interface {
	Search(ctx context.Context, gymID primitive.ObjectID, query string, limit int) ([]domain.User, error)
}

// memberService implements the MemberService interface on top of a
// repository.MemberSearcher, so the search backend can be swapped.
type memberService struct {
	searcher repository.MemberSearcher
}

// NewMemberService creates a new instance of memberService.
func NewMemberService(searcher repository.MemberSearcher) MemberService {
	return &memberService{searcher: searcher}
}

// Search finds members of a gym whose name or email contains query.
func (s *memberService) Search(ctx context.Context, gymID primitive.ObjectID, query string, limit int) ([]domain.User, error) {
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < minSearchQueryLength {
		return nil, fmt.Errorf("%w: query must be at least %d characters", ErrInvalidInput, minSearchQueryLength)
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	users, err := s.searcher.Search(ctx, gymID, query, limit)
	if err != nil {
		return nil, err
	}
	for i := range users {
		users[i].PasswordHash = ""
	}
	return users, nil
}
