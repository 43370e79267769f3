package training

import (
	"context"
	"sync"
)

var _ sessionsRepo = (*repoMock)(nil)

type repoMock struct {
	mutex    sync.Mutex
	Sessions map[string]Session

	// when set, every call fails with this error
	FailWith error
}

func newRepoMock() *repoMock {
	return &repoMock{
		Sessions: make(map[string]Session),
	}
}

func (r *repoMock) ListAll(_ context.Context) ([]Session, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.FailWith != nil {
		return nil, r.FailWith
	}

	sessions := make([]Session, 0, len(r.Sessions))
	for _, s := range r.Sessions {
		sessions = append(sessions, s)
	}
	return sessions, nil
}

func (r *repoMock) Insert(_ context.Context, session Session) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.FailWith != nil {
		return r.FailWith
	}
	r.Sessions[session.ID] = session
	return nil
}

func (r *repoMock) InsertMany(ctx context.Context, sessions []Session) error {
	for _, s := range sessions {
		if err := r.Insert(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func (r *repoMock) Update(_ context.Context, session Session) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.FailWith != nil {
		return r.FailWith
	}
	if _, ok := r.Sessions[session.ID]; !ok {
		return ErrSessionNotFound
	}
	r.Sessions[session.ID] = session
	return nil
}

func (r *repoMock) Delete(_ context.Context, id string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.FailWith != nil {
		return r.FailWith
	}
	if _, ok := r.Sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(r.Sessions, id)
	return nil
}

func (r *repoMock) DeleteAll(_ context.Context) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.FailWith != nil {
		return r.FailWith
	}
	r.Sessions = make(map[string]Session)
	return nil
}

func (r *repoMock) Count() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return len(r.Sessions)
}

var _ sessionsCache = (*cacheMock)(nil)

type cacheMock struct {
	mutex    sync.Mutex
	Snapshot []Session
	Saves    int

	FailWith error
}

func newCacheMock() *cacheMock {
	return &cacheMock{
		Snapshot: make([]Session, 0),
	}
}

func (c *cacheMock) Load(_ context.Context) ([]Session, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.FailWith != nil {
		return nil, c.FailWith
	}

	out := make([]Session, len(c.Snapshot))
	copy(out, c.Snapshot)
	return out, nil
}

func (c *cacheMock) Save(_ context.Context, sessions []Session) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.FailWith != nil {
		return c.FailWith
	}

	c.Snapshot = make([]Session, len(sessions))
	copy(c.Snapshot, sessions)
	c.Saves++
	return nil
}

func (c *cacheMock) Clear(_ context.Context) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.FailWith != nil {
		return c.FailWith
	}
	c.Snapshot = make([]Session, 0)
	return nil
}
