package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"shorturl-service/internal/model"
)

// MemoryStore 内存实现，用于测试和单机开发
type MemoryStore struct {
	mu      sync.RWMutex
	nextID  uint
	byID    map[uint]*model.ShortLink
	byCode  map[string]uint
	byOwner map[ownerURL]uint
}

type ownerURL struct {
	owner string
	url   string
}

// NewMemoryStore 创建内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[uint]*model.ShortLink),
		byCode:  make(map[string]uint),
		byOwner: make(map[ownerURL]uint),
	}
}

func (s *MemoryStore) ExistsByCode(_ context.Context, code string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byCode[code]
	return ok, nil
}

func (s *MemoryStore) InsertIfAbsent(_ context.Context, link *model.ShortLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byCode[link.ShortCode]; ok {
		return ErrCodeTaken
	}
	var key ownerURL
	if link.HasOwner() {
		key = ownerURL{owner: *link.OwnerID, url: link.OriginalURL}
		if _, ok := s.byOwner[key]; ok {
			return ErrOwnerURLTaken
		}
	}

	s.nextID++
	link.ID = s.nextID
	if link.URLHash == "" {
		link.URLHash = model.HashURL(link.OriginalURL)
	}
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now().UTC()
	}

	stored := clone(link)
	s.byID[stored.ID] = stored
	s.byCode[stored.ShortCode] = stored.ID
	if link.HasOwner() {
		s.byOwner[key] = stored.ID
	}
	return nil
}

func (s *MemoryStore) FindByCode(_ context.Context, code string) (*model.ShortLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byCode[code]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(s.byID[id]), nil
}

func (s *MemoryStore) FindByOwnerAndURL(_ context.Context, ownerID, rawURL string) (*model.ShortLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byOwner[ownerURL{owner: ownerID, url: rawURL}]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(s.byID[id]), nil
}

func (s *MemoryStore) FindByURL(_ context.Context, rawURL string) (*model.ShortLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found *model.ShortLink
	for _, link := range s.byID {
		if link.OriginalURL != rawURL {
			continue
		}
		if found == nil || link.ID < found.ID {
			found = link
		}
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return clone(found), nil
}

func (s *MemoryStore) FindByID(_ context.Context, id uint) (*model.ShortLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	link, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(link), nil
}

func (s *MemoryStore) Delete(_ context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	link, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.byID, id)
	delete(s.byCode, link.ShortCode)
	if link.HasOwner() {
		delete(s.byOwner, ownerURL{owner: *link.OwnerID, url: link.OriginalURL})
	}
	return nil
}

func (s *MemoryStore) ListAll(_ context.Context) ([]model.ShortLink, error) {
	s.mu.RLock()
	links := make([]model.ShortLink, 0, len(s.byID))
	for _, link := range s.byID {
		links = append(links, *clone(link))
	}
	s.mu.RUnlock()

	sort.Slice(links, func(i, j int) bool {
		return links[i].ID > links[j].ID
	})
	return links, nil
}

func clone(link *model.ShortLink) *model.ShortLink {
	c := *link
	if link.OwnerID != nil {
		owner := *link.OwnerID
		c.OwnerID = &owner
	}
	return &c
}
