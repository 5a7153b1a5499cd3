package mockapi

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/grandgaze/institutions"
	"github.com/jrsteele09/grandgaze/posts"
)

var (
	errNotFound  = errors.New("not found")
	errDuplicate = errors.New("already exists")
)

// account is an institution plus its password hash.
type account struct {
	institution  institutions.Institution
	passwordHash string
}

// postRecord is a post plus the id of the institution that owns it.
type postRecord struct {
	post    posts.Post
	ownerID string
}

// Store keeps accounts and posts in memory.
type Store struct {
	lock     sync.RWMutex
	accounts map[string]*account // id -> account
	emailIds map[string]string   // email -> id
	posts    map[string]*postRecord
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		accounts: make(map[string]*account),
		emailIds: make(map[string]string),
		posts:    make(map[string]*postRecord),
	}
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateAccount stores a new institution and assigns its id. Emails are unique, case-insensitively.
func (s *Store) CreateAccount(inst institutions.Institution, passwordHash string) (*institutions.Institution, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	key := emailKey(inst.Email)
	if _, ok := s.emailIds[key]; ok {
		return nil, errDuplicate
	}
	inst.ID = uuid.New().String()
	s.accounts[inst.ID] = &account{institution: inst, passwordHash: passwordHash}
	s.emailIds[key] = inst.ID
	return inst.Clone(), nil
}

// GetByEmail returns the account registered with email.
func (s *Store) GetByEmail(email string) (*institutions.Institution, string, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	id, ok := s.emailIds[emailKey(email)]
	if !ok {
		return nil, "", errNotFound
	}
	acc := s.accounts[id]
	return acc.institution.Clone(), acc.passwordHash, nil
}

// GetByID returns the institution with id.
func (s *Store) GetByID(id string) (*institutions.Institution, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	acc, ok := s.accounts[id]
	if !ok {
		return nil, errNotFound
	}
	return acc.institution.Clone(), nil
}

// UpdateProfile replaces the editable fields of institution id. An empty logo keeps the current one.
func (s *Store) UpdateProfile(id string, update institutions.ProfileUpdate, logo string) (*institutions.Institution, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	acc, ok := s.accounts[id]
	if !ok {
		return nil, errNotFound
	}
	inst := &acc.institution
	inst.Name = update.Name
	if update.Sector != "" {
		inst.Sector = update.Sector
	}
	inst.Description = update.Description
	inst.Website = update.Website
	inst.Phone = update.Phone
	inst.Address = update.Address
	if logo != "" {
		inst.Logo = logo
	}
	return inst.Clone(), nil
}

// DeleteAccount removes institution id and every post it owns.
func (s *Store) DeleteAccount(id string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	acc, ok := s.accounts[id]
	if !ok {
		return errNotFound
	}
	delete(s.emailIds, emailKey(acc.institution.Email))
	delete(s.accounts, id)
	for postID, rec := range s.posts {
		if rec.ownerID == id {
			delete(s.posts, postID)
		}
	}
	return nil
}

// CreatePost stores p for ownerID, assigning id and creation time.
func (s *Store) CreatePost(ownerID string, p posts.Post, now time.Time) (*posts.Post, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if _, ok := s.accounts[ownerID]; !ok {
		return nil, errNotFound
	}
	p.ID = uuid.New().String()
	p.CreatedAt = now.UTC()
	s.posts[p.ID] = &postRecord{post: p, ownerID: ownerID}
	return s.view(s.posts[p.ID]), nil
}

// PostOwner returns the owner id of post id.
func (s *Store) PostOwner(id string) (string, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	rec, ok := s.posts[id]
	if !ok {
		return "", errNotFound
	}
	return rec.ownerID, nil
}

// UpdatePost replaces the editable fields of post id. An empty document keeps the current one.
func (s *Store) UpdatePost(id string, p posts.Post) (*posts.Post, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	rec, ok := s.posts[id]
	if !ok {
		return nil, errNotFound
	}
	p.ID = rec.post.ID
	p.CreatedAt = rec.post.CreatedAt
	if p.Document == "" {
		p.Document = rec.post.Document
	}
	rec.post = p
	return s.view(rec), nil
}

// DeletePost removes post id.
func (s *Store) DeletePost(id string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if _, ok := s.posts[id]; !ok {
		return errNotFound
	}
	delete(s.posts, id)
	return nil
}

// ListPosts returns posts newest first, restricted to sector when it is non-empty
// and to ownerID when that is non-empty.
func (s *Store) ListPosts(sector, ownerID string) []posts.Post {
	s.lock.RLock()
	defer s.lock.RUnlock()

	list := make([]posts.Post, 0, len(s.posts))
	for _, rec := range s.posts {
		if sector != "" && rec.post.Sector != sector {
			continue
		}
		if ownerID != "" && rec.ownerID != ownerID {
			continue
		}
		list = append(list, *s.view(rec))
	}

	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	return list
}

// view copies a post and populates the owner's public details. Caller holds the lock.
func (s *Store) view(rec *postRecord) *posts.Post {
	p := rec.post
	p.Requirements = append([]string(nil), rec.post.Requirements...)
	if acc, ok := s.accounts[rec.ownerID]; ok {
		p.Institution = &institutions.Institution{
			ID:   acc.institution.ID,
			Name: acc.institution.Name,
			Logo: acc.institution.Logo,
		}
	}
	return &p
}
