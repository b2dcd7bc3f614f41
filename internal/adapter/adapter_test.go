package adapter_test

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/example/meal-access/internal/adapter"
	"github.com/example/meal-access/internal/application"
	"github.com/example/meal-access/internal/facematch"
	"github.com/example/meal-access/internal/lock"
	"github.com/example/meal-access/internal/persistence"
	"github.com/example/meal-access/internal/persistence/memory"
	"github.com/example/meal-access/internal/persistence/sqlite"
)

var location = time.FixedZone("BRT", -3*60*60)

func forEachStore(t *testing.T, fn func(t *testing.T, store persistence.Store)) {
	t.Helper()

	t.Run("memory", func(t *testing.T) {
		t.Parallel()
		fn(t, memory.New())
	})
	t.Run("sqlite", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		store, err := sqlite.Open(ctx, sqlite.Config{DSN: filepath.Join(t.TempDir(), "adapter.db")}, nil)
		require.NoError(t, err)
		t.Cleanup(func() { _ = store.Close() })
		require.NoError(t, store.Migrate(ctx))
		fn(t, store)
	})
}

type services struct {
	engine    *application.AuthorizationEngine
	employees *application.EmployeeService
	venues    *application.VenueService
	reports   *application.ReportService
	auth      *application.AuthService
	admins    *application.AdminService
}

func wire(store persistence.Store, now func() time.Time) services {
	employeeRepo := adapter.NewEmployeeRepository(store)
	venueRepo := adapter.NewVenueRepository(store)
	adminRepo := adapter.NewAdminRepository(store)
	extractor := facematch.ExtractorFunc(func(_ context.Context, photo []byte) (facematch.Signature, error) {
		sig := make(facematch.Signature, facematch.SignatureLength)
		sig[0] = float64(len(photo))
		return sig, nil
	})
	hash := func(password string) (string, error) {
		return application.CreatePasswordHash(password, application.Argon2idParams{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16})
	}

	return services{
		engine: application.NewAuthorizationEngine(application.AuthorizationEngineDeps{
			Resolver:    application.NewIdentityResolver(adapter.NewIdentityStore(store), extractor, facematch.DefaultThreshold, nil),
			Venues:      adapter.NewVenueCatalog(store),
			Ledger:      adapter.NewMealLedger(store),
			Locker:      lock.NewKeyed(),
			IDGenerator: func() string { return uuid.NewString() },
			Now:         now,
			Location:    location,
		}),
		employees: application.NewEmployeeService(employeeRepo, venueRepo, extractor, now),
		venues:    application.NewVenueService(venueRepo, now),
		reports:   application.NewReportService(adapter.NewEventQuery(store, location), venueRepo, now),
		auth: application.NewAuthService(application.AuthServiceDeps{
			Admins:         adminRepo,
			Sessions:       adapter.NewSessionRepository(store),
			TokenGenerator: func() string { return uuid.NewString() },
			Now:            now,
		}),
		admins: application.NewAdminService(adminRepo, hash, now),
	}
}

func datePtr(year int, month time.Month, day int) *time.Time {
	d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return &d
}

func TestMealFlow(t *testing.T) {
	t.Parallel()

	forEachStore(t, func(t *testing.T, store persistence.Store) {
		now := time.Date(2024, 1, 15, 12, 0, 0, 0, location)
		svc := wire(store, func() time.Time { return now })
		ctx := context.Background()
		ana := application.Principal{Username: "ana"}

		for _, name := range []string{"Central", "North"} {
			_, err := svc.venues.CreateVenue(ctx, application.CreateVenueParams{
				Principal: ana,
				Input:     application.VenueInput{Name: name, ValidFrom: datePtr(2024, 1, 1), ValidUntil: datePtr(2024, 1, 31)},
			})
			require.NoError(t, err)
		}

		_, err := svc.employees.CreateEmployee(ctx, application.CreateEmployeeParams{
			Principal:       ana,
			Input:           application.EmployeeInput{ID: "E1", Name: "Ana Lima", Document: "123.456.789-00", CostCenter: "CC-1"},
			PermittedVenues: []string{"Central"},
		})
		require.NoError(t, err)
		_, err = svc.employees.CreateEmployee(ctx, application.CreateEmployeeParams{
			Principal:       ana,
			Input:           application.EmployeeInput{ID: "E2", Name: "Bia Costa", Document: "987.654.321-00"},
			PermittedVenues: []string{"North"},
		})
		require.NoError(t, err)

		auth, err := svc.engine.Authorize(ctx, application.AuthorizeParams{Principal: ana, Venue: "Central", Document: "12345678900"})
		require.NoError(t, err)
		assert.Equal(t, "E1", auth.Employee.ID)

		_, err = svc.engine.Authorize(ctx, application.AuthorizeParams{Principal: ana, Venue: "Central", Document: "123.456.789-00"})
		reason, ok := application.DenialReasonOf(err)
		require.True(t, ok, "expected denial, got %v", err)
		assert.Equal(t, application.ReasonQuotaExceeded, reason)

		_, err = svc.engine.Authorize(ctx, application.AuthorizeParams{Principal: ana, Venue: "Central", Document: "98765432100"})
		reason, ok = application.DenialReasonOf(err)
		require.True(t, ok, "expected denial, got %v", err)
		assert.Equal(t, application.ReasonNotPermitted, reason)

		_, err = svc.employees.EnrollFace(ctx, application.EnrollFaceParams{Principal: ana, EmployeeID: "E2", Photo: []byte("bia")})
		require.NoError(t, err)
		auth, err = svc.engine.Authorize(ctx, application.AuthorizeParams{Principal: ana, Venue: "North", Photo: []byte("bia")})
		require.NoError(t, err)
		assert.Equal(t, "E2", auth.Employee.ID)

		rows, err := svc.reports.ListMeals(ctx, application.ReportParams{Principal: ana})
		assert.ErrorIs(t, err, application.ErrReauthenticationRequired)

		until := now.Add(time.Minute)
		ana.ReportAccessUntil = &until
		rows, err = svc.reports.ListMeals(ctx, application.ReportParams{Principal: ana})
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, "E2", rows[0].Event.EmployeeID)
		assert.Equal(t, "98765432100", rows[0].Document)
		assert.Equal(t, "E1", rows[1].Event.EmployeeID)
		assert.Equal(t, "CC-1", rows[1].Event.CostCenter)
		assert.True(t, rows[1].Event.OccurredAt.Equal(now), "stored wall clock is read back in the configured zone")
	})
}

func TestConcurrentAuthorizations(t *testing.T) {
	t.Parallel()

	forEachStore(t, func(t *testing.T, store persistence.Store) {
		now := time.Date(2024, 1, 15, 12, 0, 0, 0, location)
		svc := wire(store, func() time.Time { return now })
		ctx := context.Background()
		root := application.Principal{Username: "root", IsSuperAdmin: true}

		_, err := svc.venues.CreateVenue(ctx, application.CreateVenueParams{
			Principal: root,
			Input:     application.VenueInput{Name: "Central", ValidFrom: datePtr(2024, 1, 1), ValidUntil: datePtr(2024, 12, 31)},
		})
		require.NoError(t, err)
		_, err = svc.employees.CreateEmployee(ctx, application.CreateEmployeeParams{
			Principal:       root,
			Input:           application.EmployeeInput{ID: "E1", Name: "Ana", Document: "1", AllowsTwoMeals: true},
			PermittedVenues: []string{"Central"},
		})
		require.NoError(t, err)

		var authorized atomic.Int32
		var g errgroup.Group
		for i := 0; i < 16; i++ {
			g.Go(func() error {
				_, err := svc.engine.Authorize(ctx, application.AuthorizeParams{Principal: root, Venue: "Central", Document: "1"})
				if err == nil {
					authorized.Add(1)
					return nil
				}
				if _, ok := application.DenialReasonOf(err); ok {
					return nil
				}
				return err
			})
		}
		require.NoError(t, g.Wait())
		assert.Equal(t, int32(2), authorized.Load())

		count, err := store.CountEvents(ctx, "E1", "2024-01-15")
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})
}

func TestOperatorSessions(t *testing.T) {
	t.Parallel()

	forEachStore(t, func(t *testing.T, store persistence.Store) {
		now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
		svc := wire(store, func() time.Time { return now })
		ctx := context.Background()

		created, err := svc.admins.Bootstrap(ctx, application.AdminInput{Username: "root", Name: "Root", Password: "initial-pass"})
		require.NoError(t, err)
		require.True(t, created)

		result, err := svc.auth.Authenticate(ctx, application.AuthenticateParams{Username: "root", Password: "initial-pass"})
		require.NoError(t, err)

		principal, err := svc.auth.ValidateSession(ctx, result.Session.Token)
		require.NoError(t, err)
		assert.True(t, principal.IsSuperAdmin)
		assert.Nil(t, principal.ReportAccessUntil)

		_, err = svc.auth.Reauthenticate(ctx, application.ReauthenticateParams{Token: result.Session.Token, Password: "initial-pass"})
		require.NoError(t, err)
		principal, err = svc.auth.ValidateSession(ctx, result.Session.Token)
		require.NoError(t, err)
		require.NotNil(t, principal.ReportAccessUntil)

		_, err = svc.reports.ListMeals(ctx, application.ReportParams{Principal: principal})
		require.NoError(t, err)

		require.NoError(t, svc.auth.Logout(ctx, result.Session.Token))
		_, err = svc.auth.ValidateSession(ctx, result.Session.Token)
		assert.ErrorIs(t, err, application.ErrSessionRevoked)
	})
}
