package repository

import (
	"sync"

	"gorm.io/gorm"
)

// Repositories bundles all repository instances.
type Repositories struct {
	User        UserRepository
	Profile     ProfileRepository
	Resume      ResumeRepository
	Opportunity OpportunityRepository
	Recruiter   RecruiterRepository
	Interaction InteractionRepository
	PlanHistory PlanHistoryRepository
	Webhook     WebhookEventRepository
}

// NewRepositories creates every repository from one database handle.
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:        NewUserRepository(db),
		Profile:     NewProfileRepository(db),
		Resume:      NewResumeRepository(db),
		Opportunity: NewOpportunityRepository(db),
		Recruiter:   NewRecruiterRepository(db),
		Interaction: NewInteractionRepository(db),
		PlanHistory: NewPlanHistoryRepository(db),
		Webhook:     NewWebhookEventRepository(db),
	}
}

// Factory manages repository instances and ensures they are singletons
type Factory struct {
	db    *gorm.DB
	repos *Repositories
	once  sync.Once
}

// NewFactory creates a new repository factory
func NewFactory(db *gorm.DB) *Factory {
	return &Factory{
		db: db,
	}
}

// GetRepositories returns a singleton instance of all repositories
func (f *Factory) GetRepositories() *Repositories {
	f.once.Do(func() {
		f.repos = NewRepositories(f.db)
	})
	return f.repos
}

// Global factory instance
var globalFactory *Factory
var factoryOnce sync.Once

// InitializeFactory initializes the global repository factory
func InitializeFactory(db *gorm.DB) {
	factoryOnce.Do(func() {
		globalFactory = NewFactory(db)
	})
}

// GetGlobalFactory returns the global repository factory instance
func GetGlobalFactory() *Factory {
	if globalFactory == nil {
		panic("Repository factory not initialized. Call InitializeFactory first.")
	}
	return globalFactory
}

// GetGlobalRepositories returns the global repositories instance
func GetGlobalRepositories() *Repositories {
	return GetGlobalFactory().GetRepositories()
}
