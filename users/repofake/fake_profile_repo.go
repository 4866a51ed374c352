package fakeprofilerepo

import (
	"sync"

	"github.com/jrsteele09/go-certprep-session/internal/errors"
	"github.com/jrsteele09/go-certprep-session/users"
)

var _ users.ProfileRepo = (*FakeProfileRepo)(nil)

type FakeProfileRepo struct {
	profiles map[string]users.Profile
	lock     sync.RWMutex
}

func NewFakeProfileRepo() *FakeProfileRepo {
	return &FakeProfileRepo{
		profiles: make(map[string]users.Profile),
	}
}

func (pr *FakeProfileRepo) Upsert(profile *users.Profile) error {
	if profile == nil || profile.ID == "" {
		return errors.ErrIDRequired
	}

	pr.lock.Lock()
	defer pr.lock.Unlock()

	pr.profiles[profile.ID] = *profile
	return nil
}

func (pr *FakeProfileRepo) Delete(id string) error {
	pr.lock.Lock()
	defer pr.lock.Unlock()

	if _, ok := pr.profiles[id]; !ok {
		return errors.ErrNotFound
	}
	delete(pr.profiles, id)
	return nil
}

func (pr *FakeProfileRepo) GetByID(id string) (*users.Profile, error) {
	pr.lock.RLock()
	defer pr.lock.RUnlock()

	p, ok := pr.profiles[id]
	if !ok {
		return nil, errors.ErrNotFound
	}
	return &p, nil
}

func (pr *FakeProfileRepo) Count() int {
	pr.lock.RLock()
	defer pr.lock.RUnlock()
	return len(pr.profiles)
}
