package note

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-notes-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-notes-go/internal/common"
	"github.com/ovaphlow/pitchfork/service-notes-go/internal/note/entity"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Store is the persistence the note service depends on.
type Store interface {
	GetByID(ctx context.Context, id int64) (*entity.Note, error)
	ListByOwner(ctx context.Context, ownerID int64, offset, limit int) ([]entity.Note, error)
	Create(ctx context.Context, n *entity.Note) (int64, error)
	Update(ctx context.Context, n *entity.Note) error
	Delete(ctx context.Context, id int64) error
}

// Input is the writable part of a note. Any owner sent by a client is
// ignored; the owner is always the caller.
type Input struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

func (in Input) validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return common.InvalidInput("title is required")
	}
	return nil
}

// Service runs note CRUD behind the ownership gate.
type Service struct {
	store  Store
	logger *zap.SugaredLogger
}

func NewService(store Store, logger *zap.SugaredLogger) *Service {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{store: store, logger: logger}
}

// Get returns the note if identity owns it.
func (s *Service) Get(ctx context.Context, identity auth.Identity, id int64) (*entity.Note, error) {
	n, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := auth.AuthorizeNote(identity, n); err != nil {
		s.logger.Infow("note access denied", "note_id", id, "user_id", identity.ID)
		return nil, err
	}
	return n, nil
}

// ListByOwner pages through ownerID's notes. Only the owner may list them.
// offset below zero is treated as zero and limit is clamped to [1, MaxLimit].
func (s *Service) ListByOwner(ctx context.Context, identity auth.Identity, ownerID int64, offset, limit int) ([]entity.Note, error) {
	if !auth.CanModifyUser(identity, ownerID) {
		return nil, common.ErrForbidden
	}
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return s.store.ListByOwner(ctx, ownerID, offset, limit)
}

// Create stores a note owned by identity.
func (s *Service) Create(ctx context.Context, identity auth.Identity, in Input) (*entity.Note, error) {
	if identity.ID == 0 {
		return nil, common.ErrUnauthenticated
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	n := &entity.Note{Title: in.Title, Content: in.Content, OwnerID: identity.ID}
	if _, err := s.store.Create(ctx, n); err != nil {
		return nil, err
	}
	s.logger.Debugw("note created", "note_id", n.ID, "user_id", identity.ID)
	return n, nil
}

// Update replaces title and content of a note identity owns.
func (s *Service) Update(ctx context.Context, identity auth.Identity, id int64, in Input) (*entity.Note, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	n, err := s.Get(ctx, identity, id)
	if err != nil {
		return nil, err
	}
	n.Title = in.Title
	n.Content = in.Content
	if err := s.store.Update(ctx, n); err != nil {
		return nil, fmt.Errorf("update note %d: %w", id, err)
	}
	return n, nil
}

// Delete removes a note identity owns.
func (s *Service) Delete(ctx context.Context, identity auth.Identity, id int64) error {
	if _, err := s.Get(ctx, identity, id); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete note %d: %w", id, err)
	}
	s.logger.Debugw("note deleted", "note_id", id, "user_id", identity.ID)
	return nil
}
