package testfixtures

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/example/meal-access/internal/adapter"
	"github.com/example/meal-access/internal/application"
	"github.com/example/meal-access/internal/facematch"
	"github.com/example/meal-access/internal/lock"
	"github.com/example/meal-access/internal/persistence"
)

// CheapArgon2idParams keeps password hashing fast in tests.
var CheapArgon2idParams = application.Argon2idParams{
	Memory:      1024,
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  8,
	KeyLength:   16,
}

// HashPassword hashes password with CheapArgon2idParams.
func HashPassword(password string) (string, error) {
	return application.CreatePasswordHash(password, CheapArgon2idParams)
}

// Photos is a stub face extractor keyed by photo content. Unknown photos
// contain no face.
type Photos struct {
	mu    sync.RWMutex
	known map[string]facematch.Signature
	crowd map[string]struct{}
}

// NewPhotos returns an empty photo registry.
func NewPhotos() *Photos {
	return &Photos{known: make(map[string]facematch.Signature), crowd: make(map[string]struct{})}
}

// Register makes photo yield sig.
func (p *Photos) Register(photo string, sig facematch.Signature) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.known[photo] = sig
}

// RegisterCrowd makes photo report several faces.
func (p *Photos) RegisterCrowd(photo string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.crowd[photo] = struct{}{}
}

// Extract implements facematch.Extractor.
func (p *Photos) Extract(_ context.Context, photo []byte) (facematch.Signature, error) {
	if len(photo) == 0 {
		return nil, facematch.ErrEmptyPhoto
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if _, ok := p.crowd[string(photo)]; ok {
		return nil, facematch.ErrMultipleFaces
	}
	sig, ok := p.known[string(photo)]
	if !ok {
		return nil, facematch.ErrNoFaceDetected
	}
	return sig.Clone(), nil
}

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
	Photos      *Photos
	Location    *time.Location
	Logger      *slog.Logger
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(ReferenceTime()),
		IDGenerator: NewIDGenerator("id"),
		Photos:      NewPhotos(),
		Location:    Location,
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(ReferenceTime())
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("id")
	}
	if factory.Photos == nil {
		factory.Photos = NewPhotos()
	}
	if factory.Location == nil {
		factory.Location = Location
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// WithLogger routes service logs to logger.
func WithLogger(logger *slog.Logger) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Logger = logger
	}
}

// App bundles every application service over one store.
type App struct {
	Store     persistence.Store
	Photos    *Photos
	Engine    *application.AuthorizationEngine
	Employees *application.EmployeeService
	Venues    *application.VenueService
	Admins    *application.AdminService
	Auth      *application.AuthService
	Reports   *application.ReportService
}

// Build wires every service over store with the factory's clock, identifiers
// and photo registry.
func (f *ServiceFactory) Build(store persistence.Store) *App {
	now := f.Clock.NowFunc()
	nextID := f.IDGenerator.NextFunc()

	employeeRepo := adapter.NewEmployeeRepository(store)
	venueRepo := adapter.NewVenueRepository(store)
	adminRepo := adapter.NewAdminRepository(store)

	resolver := application.NewIdentityResolver(adapter.NewIdentityStore(store), f.Photos, facematch.DefaultThreshold, f.Logger)

	return &App{
		Store:  store,
		Photos: f.Photos,
		Engine: application.NewAuthorizationEngine(application.AuthorizationEngineDeps{
			Resolver:    resolver,
			Venues:      adapter.NewVenueCatalog(store),
			Ledger:      adapter.NewMealLedger(store),
			Locker:      lock.NewKeyed(),
			IDGenerator: nextID,
			Now:         now,
			Location:    f.Location,
			Logger:      f.Logger,
		}),
		Employees: application.NewEmployeeServiceWithLogger(employeeRepo, venueRepo, f.Photos, now, f.Logger),
		Venues:    application.NewVenueServiceWithLogger(venueRepo, now, f.Logger),
		Admins:    application.NewAdminServiceWithLogger(adminRepo, HashPassword, now, f.Logger),
		Auth: application.NewAuthService(application.AuthServiceDeps{
			Admins:         adminRepo,
			Sessions:       adapter.NewSessionRepository(store),
			TokenGenerator: nextID,
			Now:            now,
			Logger:         f.Logger,
		}),
		Reports: application.NewReportServiceWithLogger(adapter.NewEventQuery(store, f.Location), venueRepo, now, f.Logger),
	}
}

// SeedAdmin creates the admin described by fixture directly in the store.
func (a *App) SeedAdmin(ctx context.Context, fixture AdminFixture) error {
	if fixture.IsSuperAdmin {
		count, err := a.Store.CountAdmins(ctx)
		if err != nil {
			return err
		}
		if count == 0 {
			_, err := a.Admins.Bootstrap(ctx, fixture.Input())
			return err
		}
	}
	_, err := a.Admins.CreateAdmin(ctx, application.CreateAdminParams{
		Principal: application.Principal{Username: "seed", IsSuperAdmin: true},
		Input:     fixture.Input(),
	})
	return err
}

// SeedVenue creates the venue described by fixture on behalf of its owner.
func (a *App) SeedVenue(ctx context.Context, fixture VenueFixture) (application.Venue, error) {
	return a.Venues.CreateVenue(ctx, application.CreateVenueParams{
		Principal: application.Principal{Username: fixture.Owner},
		Input:     application.VenueInput{Name: fixture.Name, ValidFrom: fixture.ValidFrom, ValidUntil: fixture.ValidUntil},
	})
}

// SeedEmployee creates the employee described by fixture, storing its face
// signature when set.
func (a *App) SeedEmployee(ctx context.Context, fixture EmployeeFixture) (application.Employee, error) {
	principal := application.Principal{Username: fixture.CreatedBy, IsSuperAdmin: true}
	employee, err := a.Employees.CreateEmployee(ctx, application.CreateEmployeeParams{
		Principal: principal,
		Input: application.EmployeeInput{
			ID:             fixture.ID,
			Name:           fixture.Name,
			Document:       fixture.Document,
			CostCenter:     fixture.CostCenter,
			WorkOrder:      fixture.WorkOrder,
			AllowsTwoMeals: fixture.AllowsTwoMeals,
		},
		PermittedVenues: fixture.PermittedVenues,
	})
	if err != nil || len(fixture.FaceSignature) == 0 {
		return employee, err
	}
	photo := "enroll:" + fixture.ID
	a.Photos.Register(photo, fixture.FaceSignature)
	return a.Employees.EnrollFace(ctx, application.EnrollFaceParams{
		Principal:  principal,
		EmployeeID: fixture.ID,
		Photo:      []byte(photo),
	})
}
