package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/lexdesk/officeauth/domain"
	"github.com/lexdesk/officeauth/repository"
	"github.com/lexdesk/officeauth/usecase/directory"
	"github.com/lexdesk/officeauth/usecase/office"
	"github.com/lexdesk/officeauth/usecase/payment"
	"github.com/lexdesk/officeauth/usecase/profile"
)

type fakeDirectory struct {
	mu         sync.Mutex
	users      map[string]string // email -> password
	ids        map[string]string // email -> user id
	sessions   map[string]*domain.Session
	signIns    atomic.Int32
	signOuts   []string
	purges     atomic.Int32
	signInGate chan struct{}
	authBlock  bool
	purgeBlock bool

	// authGate holds Authenticate after it signals authEntered.
	authGate    chan struct{}
	authEntered chan struct{}
	events      chan domain.SessionEvent
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		users:    map[string]string{},
		ids:      map[string]string{},
		sessions: map[string]*domain.Session{},
		events:   make(chan domain.SessionEvent, 8),
	}
}

func (d *fakeDirectory) addUser(email, password string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := uuid.NewString()
	d.users[email] = password
	d.ids[email] = id
	return id
}

func (d *fakeDirectory) open(email string) *domain.Session {
	s := &domain.Session{
		ID:           uuid.NewString(),
		UserID:       d.ids[email],
		Email:        email,
		AccessToken:  uuid.NewString(),
		RefreshToken: uuid.NewString(),
		ExpiresAt:    time.Now().Add(time.Hour),
		CreatedAt:    time.Now(),
	}
	d.sessions[s.AccessToken] = s
	return s
}

func (d *fakeDirectory) SignIn(ctx context.Context, email, password string) (*domain.Session, error) {
	d.signIns.Add(1)
	if d.signInGate != nil {
		select {
		case <-d.signInGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if pw, ok := d.users[email]; !ok || pw != password {
		return nil, domain.ErrInvalidCredentials
	}
	return d.open(email), nil
}

func (d *fakeDirectory) SignUp(_ context.Context, in directory.SignUpInput) (*domain.Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.users[in.Email]; ok {
		return nil, domain.ErrEmailTaken
	}
	d.users[in.Email] = in.Password
	d.ids[in.Email] = uuid.NewString()
	return d.open(in.Email), nil
}

func (d *fakeDirectory) SignOut(_ context.Context, sessionID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.signOuts = append(d.signOuts, sessionID)
	return nil
}

func (d *fakeDirectory) signedOut() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.signOuts...)
}

func (d *fakeDirectory) Authenticate(ctx context.Context, token string) (*domain.Session, error) {
	if d.authBlock {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if d.authGate != nil {
		d.authEntered <- struct{}{}
		select {
		case <-d.authGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if s, ok := d.sessions[token]; ok {
		return s, nil
	}
	return nil, domain.ErrUnauthorized
}

func (d *fakeDirectory) Refresh(_ context.Context, refresh string) (*domain.Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for token, s := range d.sessions {
		if s.RefreshToken == refresh {
			delete(d.sessions, token)
			next := *s
			next.AccessToken = uuid.NewString()
			next.RefreshToken = uuid.NewString()
			d.sessions[next.AccessToken] = &next
			return &next, nil
		}
	}
	return nil, domain.ErrUnauthorized
}

func (d *fakeDirectory) Subscribe(ctx context.Context) (<-chan domain.SessionEvent, func(), error) {
	return d.events, func() {}, nil
}

func (d *fakeDirectory) PurgeLegacy(ctx context.Context) (int, error) {
	d.purges.Add(1)
	if d.purgeBlock {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	return 0, nil
}

type memoryTokens struct {
	mu      sync.Mutex
	session *domain.Session
}

func (m *memoryTokens) Load(context.Context) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil, nil
	}
	s := *m.session
	return &s, nil
}

func (m *memoryTokens) Save(_ context.Context, s *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *s
	m.session = &c
	return nil
}

func (m *memoryTokens) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = nil
	return nil
}

func (m *memoryTokens) stored() *domain.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

type memoryProfiles struct {
	mu        sync.Mutex
	rows      map[string]domain.Profile
	ensureErr error
	// When gate is set, GetByUserID signals entered and waits for gate.
	gate    chan struct{}
	entered chan struct{}
}

func newMemoryProfiles() *memoryProfiles {
	return &memoryProfiles{rows: map[string]domain.Profile{}}
}

func (m *memoryProfiles) GetByUserID(ctx context.Context, userID string) (*domain.Profile, error) {
	m.mu.Lock()
	gate, entered := m.gate, m.entered
	m.mu.Unlock()
	if gate != nil {
		select {
		case entered <- struct{}{}:
		default:
		}
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[userID]
	if !ok {
		return nil, domain.ErrProfileNotFound
	}
	return &p, nil
}

func (m *memoryProfiles) Ensure(_ context.Context, in repository.EnsureProfileInput) (*domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ensureErr != nil {
		return nil, m.ensureErr
	}
	p, ok := m.rows[in.UserID]
	if !ok {
		now := time.Now()
		p = domain.Profile{UserID: in.UserID, Email: in.Email, FullName: in.FullName, Role: in.Role, CreatedAt: now, UpdatedAt: now}
	}
	if in.ForceSuperAdmin {
		p.Role = domain.RoleSuperAdmin
	}
	m.rows[in.UserID] = p
	return &p, nil
}

func (m *memoryProfiles) UpdateRole(_ context.Context, userID string, role domain.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[userID]
	if !ok {
		return domain.ErrProfileNotFound
	}
	p.Role = role
	m.rows[userID] = p
	return nil
}

func (m *memoryProfiles) put(p domain.Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[p.UserID] = p
}

func (m *memoryProfiles) block() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gate = make(chan struct{})
	m.entered = make(chan struct{}, 1)
}

func (m *memoryProfiles) release() {
	m.mu.Lock()
	gate := m.gate
	m.gate = nil
	m.mu.Unlock()
	close(gate)
}

type memoryOffices struct {
	memberships map[string]*domain.OfficeUser
	offices     map[string]*domain.Office
}

func (m memoryOffices) ActiveMembership(_ context.Context, userID string) (*domain.OfficeUser, *domain.Office, error) {
	mem, ok := m.memberships[userID]
	if !ok {
		return nil, nil, domain.ErrMembershipNotFound
	}
	return mem, m.offices[mem.OfficeID], nil
}

type staticBilling map[string]bool

func (b staticBilling) HasActiveSubscription(_ context.Context, userID string) (bool, error) {
	return b[userID], nil
}

type harness struct {
	dir      *fakeDirectory
	profiles *memoryProfiles
	offices  memoryOffices
	billing  staticBilling
	tokens   *memoryTokens
	pipeline *Pipeline
}

func newHarness(adminEmails ...string) *harness {
	h := &harness{
		dir:      newFakeDirectory(),
		profiles: newMemoryProfiles(),
		offices:  memoryOffices{memberships: map[string]*domain.OfficeUser{}, offices: map[string]*domain.Office{}},
		billing:  staticBilling{},
		tokens:   &memoryTokens{},
	}
	h.pipeline = NewPipeline(
		profile.New(h.profiles, profile.NewStaticPolicy(adminEmails...), nil, time.Second, nil),
		office.New(h.offices, time.Second, nil),
		payment.New(h.profiles, h.billing, 7, nil),
		nil,
		nil,
	)
	return h
}

func (h *harness) resolver(opts ...Option) *Resolver {
	opts = append([]Option{WithTokenStore(h.tokens), WithSessionTimeout(200 * time.Millisecond)}, opts...)
	return NewResolver(h.dir, h.pipeline, nil, opts...)
}
