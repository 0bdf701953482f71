package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexdesk/officeauth/domain"
	"github.com/lexdesk/officeauth/usecase/directory"
	"github.com/lexdesk/officeauth/usecase/permission"
)

func permissionsOf(v permission.Variant) domain.FeaturePermissions {
	p, _ := permission.For(v)
	return p
}

func TestLoginResolvesNewUser(t *testing.T) {
	h := newHarness()
	h.dir.addUser("ana@firm.test", "pw")
	r := h.resolver()

	require.NoError(t, r.Login(context.Background(), "ana@firm.test", "pw"))

	state := r.State()
	require.True(t, state.Authenticated())
	assert.Equal(t, domain.RoleUser, state.User.Role)
	assert.Equal(t, "ana", state.User.Name)
	assert.True(t, state.FirstLogin)
	assert.Equal(t, domain.PaymentTrial, state.Payment.PaymentStatus)
	assert.Equal(t, 1, state.Payment.DaysRegistered)
	assert.False(t, r.ShowPaymentModal())
	assert.False(t, r.IsLoading())
	assert.Equal(t, permissionsOf(permission.VariantUser), r.Permissions())
	assert.NotNil(t, h.tokens.stored())
}

func TestLoginWithOfficeAdminMembership(t *testing.T) {
	h := newHarness()
	id := h.dir.addUser("lead@firm.test", "pw")
	h.offices.memberships[id] = &domain.OfficeUser{ID: "m1", OfficeID: "o1", UserID: id, Role: domain.RoleAdmin, Active: true}
	h.offices.offices["o1"] = &domain.Office{ID: "o1", Name: "Lima Advocacia", Plan: domain.PlanBasic, Active: true}
	r := h.resolver()

	require.NoError(t, r.Login(context.Background(), "lead@firm.test", "pw"))

	user := r.CurrentUser()
	require.NotNil(t, user)
	require.NotNil(t, user.OfficeID)
	assert.Equal(t, "o1", *user.OfficeID)
	require.NotNil(t, user.OfficeRole)
	assert.Equal(t, domain.RoleAdmin, *user.OfficeRole)
	assert.Equal(t, permissionsOf(permission.VariantOfficeAdmin), r.Permissions())
}

func TestLoginAllowListedBecomesSuperAdmin(t *testing.T) {
	h := newHarness("root@firm.test")
	id := h.dir.addUser("root@firm.test", "pw")
	h.profiles.put(domain.Profile{UserID: id, Email: "root@firm.test", Role: domain.RoleUser, CreatedAt: time.Now().Add(-90 * 24 * time.Hour)})
	r := h.resolver()

	require.NoError(t, r.Login(context.Background(), "root@firm.test", "pw"))

	assert.Equal(t, domain.RoleSuperAdmin, r.CurrentUser().Role)
	assert.Equal(t, permissionsOf(permission.VariantSuperAdmin), r.Permissions())
	assert.False(t, r.State().Payment.NeedsPayment)
	assert.False(t, r.IsFirstLogin())
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	h := newHarness()
	h.dir.addUser("ana@firm.test", "pw")
	r := h.resolver()

	err := r.Login(context.Background(), "ana@firm.test", "nope")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	assert.False(t, r.IsAuthenticated())
	assert.Nil(t, h.tokens.stored())
}

func TestLoginWithoutProfileStaysSignedOut(t *testing.T) {
	h := newHarness()
	h.dir.addUser("ana@firm.test", "pw")
	h.profiles.ensureErr = assert.AnError
	r := h.resolver()

	err := r.Login(context.Background(), "ana@firm.test", "pw")
	assert.ErrorIs(t, err, domain.ErrProfileUnavailable)
	assert.False(t, r.IsAuthenticated())
	assert.False(t, r.IsLoading())
	assert.Nil(t, h.tokens.stored())
	assert.Len(t, h.dir.signedOut(), 1)
}

func TestConcurrentLoginIsRejected(t *testing.T) {
	h := newHarness()
	h.dir.addUser("ana@firm.test", "pw")
	h.dir.signInGate = make(chan struct{})
	r := h.resolver()

	firstDone := make(chan error, 1)
	go func() { firstDone <- r.Login(context.Background(), "ana@firm.test", "pw") }()

	require.Eventually(t, func() bool { return h.dir.signIns.Load() == 1 }, time.Second, 5*time.Millisecond)

	err := r.Login(context.Background(), "ana@firm.test", "pw")
	assert.ErrorIs(t, err, domain.ErrLoginInProgress)

	close(h.dir.signInGate)
	require.NoError(t, <-firstDone)
	assert.EqualValues(t, 1, h.dir.signIns.Load())
	assert.True(t, r.IsAuthenticated())
}

func TestLogoutClearsEverything(t *testing.T) {
	h := newHarness()
	id := h.dir.addUser("ana@firm.test", "pw")
	h.offices.memberships[id] = &domain.OfficeUser{ID: "m1", OfficeID: "o1", UserID: id, Role: domain.RoleUser, Active: true}
	h.offices.offices["o1"] = &domain.Office{ID: "o1"}
	r := h.resolver()
	require.NoError(t, r.Login(context.Background(), "ana@firm.test", "pw"))
	held := r.State().Session.ID

	r.Logout(context.Background())

	assert.Equal(t, State{}, r.State())
	assert.False(t, r.IsAuthenticated())
	assert.Nil(t, r.CurrentUser())
	assert.Equal(t, domain.FeaturePermissions{}, r.Permissions())
	assert.False(t, r.ShowPaymentModal())
	assert.Nil(t, h.tokens.stored())
	assert.Equal(t, []string{held}, h.dir.signedOut())
}

func TestLogoutDuringResolutionDiscardsResult(t *testing.T) {
	h := newHarness()
	h.dir.addUser("ana@firm.test", "pw")
	h.profiles.block()
	r := h.resolver()

	done := make(chan error, 1)
	go func() { done <- r.Login(context.Background(), "ana@firm.test", "pw") }()

	<-h.profiles.entered
	assert.True(t, r.IsLoading())
	r.Logout(context.Background())
	h.profiles.release()

	require.NoError(t, <-done)
	assert.False(t, r.IsAuthenticated())
	assert.Equal(t, State{}, r.State())
	assert.Len(t, h.dir.signedOut(), 1)
}

func TestLoadingPermissions(t *testing.T) {
	t.Run("allow-listed session before its profile exists", func(t *testing.T) {
		h := newHarness("root@firm.test")
		h.dir.addUser("root@firm.test", "pw")
		h.profiles.block()
		r := h.resolver()

		done := make(chan error, 1)
		go func() { done <- r.Login(context.Background(), "root@firm.test", "pw") }()
		<-h.profiles.entered

		assert.Equal(t, permissionsOf(permission.VariantSuperAdmin), r.Permissions())
		h.profiles.release()
		require.NoError(t, <-done)
	})

	t.Run("ordinary session", func(t *testing.T) {
		h := newHarness()
		h.dir.addUser("ana@firm.test", "pw")
		h.profiles.block()
		r := h.resolver()

		done := make(chan error, 1)
		go func() { done <- r.Login(context.Background(), "ana@firm.test", "pw") }()
		<-h.profiles.entered

		assert.Equal(t, domain.FeaturePermissions{}, r.Permissions())
		h.profiles.release()
		require.NoError(t, <-done)
	})
}

func TestRegister(t *testing.T) {
	h := newHarness()
	r := h.resolver()

	require.NoError(t, r.Register(context.Background(), directory.SignUpInput{Email: "new@firm.test", Password: "pw123456"}))
	assert.True(t, r.IsAuthenticated())
	assert.True(t, r.IsFirstLogin())

	err := r.Register(context.Background(), directory.SignUpInput{Email: "new@firm.test", Password: "pw123456"})
	assert.ErrorIs(t, err, domain.ErrEmailTaken)
}

func TestPaymentModal(t *testing.T) {
	h := newHarness()
	id := h.dir.addUser("late@firm.test", "pw")
	h.profiles.put(domain.Profile{UserID: id, Email: "late@firm.test", Role: domain.RoleUser, CreatedAt: time.Now().Add(-8 * 24 * time.Hour)})
	r := h.resolver()
	require.NoError(t, r.Login(context.Background(), "late@firm.test", "pw"))

	assert.True(t, r.ShowPaymentModal())
	assert.Equal(t, domain.PaymentOverdue, r.State().Payment.PaymentStatus)

	r.DismissPaymentModal()
	assert.False(t, r.ShowPaymentModal())

	h.billing[id] = true
	result := r.ValidatePayment(context.Background())
	assert.Equal(t, domain.PaymentPaid, result.PaymentStatus)
	assert.Equal(t, domain.PaymentPaid, r.State().Payment.PaymentStatus)
}

func TestValidatePaymentWithoutSession(t *testing.T) {
	r := newHarness().resolver()
	assert.Equal(t, domain.PaymentUnknown, r.ValidatePayment(context.Background()).PaymentStatus)
}

func TestInitializeRestoresStoredSession(t *testing.T) {
	h := newHarness()
	h.dir.addUser("ana@firm.test", "pw")
	first := h.resolver()
	require.NoError(t, first.Login(context.Background(), "ana@firm.test", "pw"))

	second := h.resolver()
	assert.True(t, second.IsLoading())
	second.Initialize(context.Background())
	second.Initialize(context.Background())
	defer second.Close()

	assert.False(t, second.IsLoading())
	assert.True(t, second.IsAuthenticated())
	assert.Equal(t, first.CurrentUser().ID, second.CurrentUser().ID)
	assert.EqualValues(t, 1, h.dir.purges.Load())
}

func TestInitializeRefreshesRejectedAccessToken(t *testing.T) {
	h := newHarness()
	h.dir.addUser("ana@firm.test", "pw")
	require.NoError(t, h.resolver().Login(context.Background(), "ana@firm.test", "pw"))
	stale := *h.tokens.stored()
	stale.AccessToken = "revoked"
	require.NoError(t, h.tokens.Save(context.Background(), &stale))

	r := h.resolver()
	r.Initialize(context.Background())
	defer r.Close()

	assert.True(t, r.IsAuthenticated())
	assert.NotEqual(t, stale.RefreshToken, h.tokens.stored().RefreshToken)
}

func TestInitializeTimesOutToSignedOut(t *testing.T) {
	h := newHarness()
	h.dir.addUser("ana@firm.test", "pw")
	require.NoError(t, h.resolver().Login(context.Background(), "ana@firm.test", "pw"))
	h.dir.authBlock = true

	r := h.resolver(WithSessionTimeout(30 * time.Millisecond))
	start := time.Now()
	r.Initialize(context.Background())
	defer r.Close()

	assert.Less(t, time.Since(start), time.Second)
	assert.False(t, r.IsLoading())
	assert.False(t, r.IsAuthenticated())
}

func TestLogoutDuringRestoreWins(t *testing.T) {
	for name, access := range map[string]string{"valid access token": "", "refreshed access token": "revoked"} {
		t.Run(name, func(t *testing.T) {
			h := newHarness()
			h.dir.addUser("ana@firm.test", "pw")
			require.NoError(t, h.resolver().Login(context.Background(), "ana@firm.test", "pw"))
			stored := *h.tokens.stored()
			if access != "" {
				stored.AccessToken = access
				require.NoError(t, h.tokens.Save(context.Background(), &stored))
			}
			h.dir.authGate = make(chan struct{})
			h.dir.authEntered = make(chan struct{}, 1)

			r := h.resolver(WithSessionTimeout(5 * time.Second))
			done := make(chan struct{})
			go func() {
				r.Initialize(context.Background())
				close(done)
			}()
			defer r.Close()

			<-h.dir.authEntered
			r.Logout(context.Background())
			close(h.dir.authGate)
			<-done

			assert.False(t, r.IsAuthenticated())
			assert.False(t, r.IsLoading())
			assert.Equal(t, State{}, r.State())
			assert.Nil(t, h.tokens.stored())
			assert.Equal(t, []string{stored.ID}, h.dir.signedOut())
		})
	}
}

func TestInitializeBoundsLegacyPurge(t *testing.T) {
	h := newHarness()
	h.dir.purgeBlock = true

	r := h.resolver(WithSessionTimeout(50 * time.Millisecond))
	start := time.Now()
	r.Initialize(context.Background())
	defer r.Close()

	assert.Less(t, time.Since(start), time.Second)
	assert.EqualValues(t, 1, h.dir.purges.Load())
	assert.False(t, r.IsLoading())
	assert.False(t, r.IsAuthenticated())
}

func TestReloginSignsOutPreviousSession(t *testing.T) {
	h := newHarness()
	h.dir.addUser("ana@firm.test", "pw")
	h.dir.addUser("bo@firm.test", "pw")
	r := h.resolver()

	require.NoError(t, r.Login(context.Background(), "ana@firm.test", "pw"))
	first := r.State().Session.ID
	require.NoError(t, r.Login(context.Background(), "bo@firm.test", "pw"))

	assert.Equal(t, []string{first}, h.dir.signedOut())
	assert.Equal(t, "bo@firm.test", r.CurrentUser().Email)
	assert.NotEqual(t, first, h.tokens.stored().ID)
}

func TestStaleResolveLeavesStateUntouched(t *testing.T) {
	h := newHarness()
	h.dir.addUser("ana@firm.test", "pw")
	r := h.resolver()
	require.NoError(t, r.Login(context.Background(), "ana@firm.test", "pw"))
	before := r.State()

	gen := r.generation.Load()
	r.generation.Add(1)
	replaced, err := r.resolve(context.Background(), gen, &domain.Session{ID: "other", UserID: "x"})

	assert.ErrorIs(t, err, errStale)
	assert.Nil(t, replaced)
	assert.False(t, r.IsLoading())
	assert.Equal(t, before, r.State())
}

func TestSessionEvents(t *testing.T) {
	h := newHarness()
	h.dir.addUser("ana@firm.test", "pw")
	r := h.resolver()
	require.NoError(t, r.Login(context.Background(), "ana@firm.test", "pw"))
	held := r.State().Session
	ctx := context.Background()

	r.HandleEvent(ctx, domain.SessionEvent{Kind: domain.SessionSignedOut, SessionID: held.ID, UserID: "someone-else"})
	assert.True(t, r.IsAuthenticated())

	refreshed := *held
	refreshed.AccessToken = "new-access"
	refreshed.RefreshToken = "new-refresh"
	r.HandleEvent(ctx, domain.SessionEvent{Kind: domain.SessionTokenRefreshed, Session: &refreshed, SessionID: held.ID, UserID: held.UserID})
	assert.Equal(t, "new-access", r.State().Session.AccessToken)
	assert.Equal(t, "new-refresh", h.tokens.stored().RefreshToken)
	assert.Equal(t, held.UserID, r.CurrentUser().ID)

	r.HandleEvent(ctx, domain.SessionEvent{Kind: domain.SessionSignedIn, SessionID: "other-device", UserID: held.UserID})
	assert.True(t, r.IsAuthenticated())
	assert.Equal(t, held.ID, r.State().Session.ID)

	r.HandleEvent(ctx, domain.SessionEvent{Kind: domain.SessionSignedOut, SessionID: held.ID, UserID: held.UserID})
	assert.False(t, r.IsAuthenticated())
	assert.Nil(t, h.tokens.stored())
}

func TestEventsAreConsumedAfterInitialize(t *testing.T) {
	h := newHarness()
	h.dir.addUser("ana@firm.test", "pw")
	require.NoError(t, h.resolver().Login(context.Background(), "ana@firm.test", "pw"))

	r := h.resolver()
	r.Initialize(context.Background())
	defer r.Close()
	held := r.State().Session
	require.NotNil(t, held)

	h.dir.events <- domain.SessionEvent{Kind: domain.SessionSignedOut, SessionID: held.ID, UserID: held.UserID}
	require.Eventually(t, func() bool { return !r.IsAuthenticated() }, time.Second, 5*time.Millisecond)
}

func TestStateReadsAreSafeDuringLogin(t *testing.T) {
	h := newHarness()
	h.dir.addUser("ana@firm.test", "pw")
	r := h.resolver()

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					s := r.State()
					if s.User != nil {
						assert.NotNil(t, s.Profile)
					}
					_ = r.Permissions()
				}
			}
		}()
	}
	require.NoError(t, r.Login(context.Background(), "ana@firm.test", "pw"))
	close(stop)
	wg.Wait()
}
